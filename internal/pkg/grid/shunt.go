package grid

import (
	"errors"

	"github.com/google/uuid"
)

// ShuntConfig represents the static properties of a shunt device.
type ShuntConfig struct {
	Name   string  `json:"Name"`
	G      float64 `json:"G"` // conductance [MW at V=1 p.u.]
	B      float64 `json:"B"` // susceptance [MVAr at V=1 p.u.]
	Active bool    `json:"Active"`
}

// Shunt is a fixed admittance attached to a single bus.
type Shunt struct {
	pid    uuid.UUID
	config ShuntConfig
}

// NewShunt configures and returns a Shunt.
func NewShunt(config ShuntConfig) (*Shunt, error) {
	if config.Name == "" {
		return nil, errors.New("shunt config requires a name")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Shunt{pid, config}, nil
}

// PID is a getter for the shunt PID.
func (s *Shunt) PID() uuid.UUID {
	return s.pid
}

// Name is an accessor for the shunt's configured name.
func (s *Shunt) Name() string {
	return s.config.Name
}

// Active reports whether the shunt participates in compilation.
func (s *Shunt) Active() bool {
	return s.config.Active
}

// Admittance returns the shunt admittance (G [MW], B [MVAr] at V=1 p.u.).
func (s *Shunt) Admittance() (float64, float64) {
	return s.config.G, s.config.B
}
