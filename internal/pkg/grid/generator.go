package grid

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// GeneratorConfig represents the static properties of a controlled
// generator.
type GeneratorConfig struct {
	Name   string  `json:"Name"`
	P      float64 `json:"P"`    // real power setpoint [MW]
	VSet   float64 `json:"VSet"` // voltage setpoint [p.u.]
	QMin   float64 `json:"QMin"` // reactive limit, lower [MVAr]
	QMax   float64 `json:"QMax"` // reactive limit, upper [MVAr]
	SNom   float64 `json:"SNom"` // nominal apparent power [MVA]
	PMin   float64 `json:"PMin"` // dispatch limit, lower [MW]
	PMax   float64 `json:"PMax"` // dispatch limit, upper [MW]
	Cost   float64 `json:"Cost"` // operational cost [currency/MWh]
	Active bool    `json:"Active"`
}

// Generator is a voltage-controlled injection device attached to a single
// bus.
type Generator struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	config      GeneratorConfig
	p           float64
	vset        float64
	pProfile    *Profile
	vsetProfile *Profile
}

// NewGenerator configures and returns a Generator. The voltage setpoint
// defaults to 1.0 p.u.
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.Name == "" {
		return nil, errors.New("generator config requires a name")
	}
	if config.VSet == 0 {
		config.VSet = 1.0
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Generator{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: config,
		p:      config.P,
		vset:   config.VSet,
	}, nil
}

// PID is a getter for the generator PID.
func (g *Generator) PID() uuid.UUID {
	return g.pid
}

// Name is an accessor for the generator's configured name.
func (g *Generator) Name() string {
	return g.config.Name
}

// Active reports whether the generator participates in compilation.
func (g *Generator) Active() bool {
	return g.config.Active
}

// Setpoint returns the present dispatch (P [MW], VSet [p.u.]).
func (g *Generator) Setpoint() (float64, float64) {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.p, g.vset
}

// SetDispatch updates the real power setpoint. Used by the telemetry
// service.
func (g *Generator) SetDispatch(p float64) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.p = p
}

// SetProfiles attaches time profiles to the P and VSet setpoints. Either
// profile may be nil.
func (g *Generator) SetProfiles(p, vset *Profile) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.pProfile = p
	g.vsetProfile = vset
}

// SetpointAt returns the dispatch at profile step i, falling back to the
// static setpoints for axes without a profile.
func (g *Generator) SetpointAt(i int) (float64, float64) {
	g.mux.Lock()
	defer g.mux.Unlock()
	p, vset := g.p, g.vset
	if g.pProfile.Len() > 0 {
		p = g.pProfile.Value(i)
	}
	if g.vsetProfile.Len() > 0 {
		vset = g.vsetProfile.Value(i)
	}
	return p, vset
}

// Config returns the generator's static configuration.
func (g *Generator) Config() GeneratorConfig {
	return g.config
}

// StaticGeneratorConfig represents the static properties of an
// uncontrolled generator.
type StaticGeneratorConfig struct {
	Name   string  `json:"Name"`
	P      float64 `json:"P"` // real power [MW]
	Q      float64 `json:"Q"` // reactive power [MVAr]
	Active bool    `json:"Active"`
}

// StaticGenerator injects fixed power at a bus without voltage control.
type StaticGenerator struct {
	pid    uuid.UUID
	config StaticGeneratorConfig
}

// NewStaticGenerator configures and returns a StaticGenerator.
func NewStaticGenerator(config StaticGeneratorConfig) (*StaticGenerator, error) {
	if config.Name == "" {
		return nil, errors.New("static generator config requires a name")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &StaticGenerator{pid, config}, nil
}

// PID is a getter for the static generator PID.
func (g *StaticGenerator) PID() uuid.UUID {
	return g.pid
}

// Name is an accessor for the static generator's configured name.
func (g *StaticGenerator) Name() string {
	return g.config.Name
}

// Active reports whether the device participates in compilation.
func (g *StaticGenerator) Active() bool {
	return g.config.Active
}

// Power returns the fixed injection (P [MW], Q [MVAr]).
func (g *StaticGenerator) Power() (float64, float64) {
	return g.config.P, g.config.Q
}
