package grid

import (
	"errors"

	"github.com/google/uuid"
)

// LineConfig represents the static properties of a transmission line.
type LineConfig struct {
	Name   string  `json:"Name"`
	R      float64 `json:"R"`      // series resistance [p.u.]
	X      float64 `json:"X"`      // series reactance [p.u.]
	B      float64 `json:"B"`      // total shunt susceptance [p.u.]
	Rate   float64 `json:"Rate"`   // thermal rating [MVA]
	Length float64 `json:"Length"` // [km]
	MTTF   float64 `json:"MTTF"`   // mean time to failure [h]
	MTTR   float64 `json:"MTTR"`   // mean time to recovery [h]
	Active bool    `json:"Active"`
}

// Line is a branch connecting two distinct buses.
type Line struct {
	pid    uuid.UUID
	from   *Bus
	to     *Bus
	config LineConfig
}

// NewLine configures and returns a Line between two buses.
func NewLine(from, to *Bus, config LineConfig) (*Line, error) {
	if from == nil || to == nil {
		return nil, errors.New("line requires two bus endpoints")
	}
	if from.PID() == to.PID() {
		return nil, errors.New("line endpoints must be distinct buses")
	}
	if config.Name == "" {
		return nil, errors.New("line config requires a name")
	}
	if config.R == 0 && config.X == 0 {
		return nil, errors.New("line requires nonzero series impedance")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Line{pid, from, to, config}, nil
}

// PID is a getter for the line PID.
func (l *Line) PID() uuid.UUID {
	return l.pid
}

// Name is an accessor for the line's configured name.
func (l *Line) Name() string {
	return l.config.Name
}

// From returns the sending-end bus.
func (l *Line) From() *Bus {
	return l.from
}

// To returns the receiving-end bus.
func (l *Line) To() *Bus {
	return l.to
}

// Impedance returns the series impedance R+jX in p.u.
func (l *Line) Impedance() complex128 {
	return complex(l.config.R, l.config.X)
}

// Charging returns the total line charging susceptance in p.u.
func (l *Line) Charging() float64 {
	return l.config.B
}

// Rate returns the thermal rating in MVA.
func (l *Line) Rate() float64 {
	return l.config.Rate
}

// Active reports whether the line participates in compilation.
func (l *Line) Active() bool {
	return l.config.Active
}

// Config returns the line's static configuration.
func (l *Line) Config() LineConfig {
	return l.config
}
