package grid

import (
	"errors"

	"github.com/google/uuid"
)

// BusConfig represents the static properties of a network bus.
type BusConfig struct {
	Name       string  `json:"Name"`
	VNom       float64 `json:"VNom"` // nominal voltage [kV]
	VMin       float64 `json:"VMin"` // lower voltage limit [p.u.]
	VMax       float64 `json:"VMax"` // upper voltage limit [p.u.]
	Slack      bool    `json:"Slack"`
	Active     bool    `json:"Active"`
	Area       string  `json:"Area"`
	Zone       string  `json:"Zone"`
	Substation string  `json:"Substation"`
}

// Bus is a node of the electrical network. Zero or more lines and
// injection devices may reference it.
type Bus struct {
	pid    uuid.UUID
	config BusConfig
}

// NewBus configures and returns a Bus. Voltage limits default to
// 0.9/1.1 p.u. when unset.
func NewBus(config BusConfig) (*Bus, error) {
	if config.Name == "" {
		return nil, errors.New("bus config requires a name")
	}
	if config.VNom <= 0 {
		return nil, errors.New("bus config requires a positive nominal voltage")
	}
	if config.VMin == 0 {
		config.VMin = 0.9
	}
	if config.VMax == 0 {
		config.VMax = 1.1
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Bus{pid, config}, nil
}

// PID is a getter for the bus PID.
func (b *Bus) PID() uuid.UUID {
	return b.pid
}

// Name is an accessor for the bus's configured name.
func (b *Bus) Name() string {
	return b.config.Name
}

// VNom returns the nominal voltage in kV.
func (b *Bus) VNom() float64 {
	return b.config.VNom
}

// Limits returns the per unit voltage limits (min, max).
func (b *Bus) Limits() (float64, float64) {
	return b.config.VMin, b.config.VMax
}

// Slack reports whether the bus holds the system reference.
func (b *Bus) Slack() bool {
	return b.config.Slack
}

// Active reports whether the bus participates in compilation.
func (b *Bus) Active() bool {
	return b.config.Active
}

// Config returns the bus's static configuration.
func (b *Bus) Config() BusConfig {
	return b.config
}
