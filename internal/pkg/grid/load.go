package grid

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// LoadConfig represents the static properties of a load.
type LoadConfig struct {
	Name   string  `json:"Name"`
	P      float64 `json:"P"`  // real power [MW]
	Q      float64 `json:"Q"`  // reactive power [MVAr]
	G      float64 `json:"G"`  // impedance component conductance [MW at V=1 p.u.]
	B      float64 `json:"B"`  // impedance component susceptance [MVAr at V=1 p.u.]
	Ir     float64 `json:"Ir"` // current component, real [MW at V=1 p.u.]
	Ii     float64 `json:"Ii"` // current component, imag [MVAr at V=1 p.u.]
	Active bool    `json:"Active"`
}

// Load is an injection device drawing power from a single bus. The power
// setpoint may be static, profiled, or updated live by telemetry.
type Load struct {
	mux      *sync.Mutex
	pid      uuid.UUID
	config   LoadConfig
	p        float64
	q        float64
	pProfile *Profile
	qProfile *Profile
}

// NewLoad configures and returns a Load.
func NewLoad(config LoadConfig) (*Load, error) {
	if config.Name == "" {
		return nil, errors.New("load config requires a name")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Load{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: config,
		p:      config.P,
		q:      config.Q,
	}, nil
}

// PID is a getter for the load PID.
func (l *Load) PID() uuid.UUID {
	return l.pid
}

// Name is an accessor for the load's configured name.
func (l *Load) Name() string {
	return l.config.Name
}

// Active reports whether the load participates in compilation.
func (l *Load) Active() bool {
	return l.config.Active
}

// Power returns the present power setpoint (P [MW], Q [MVAr]).
func (l *Load) Power() (float64, float64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.p, l.q
}

// SetPower updates the power setpoint. Used by the telemetry service.
func (l *Load) SetPower(p, q float64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.p = p
	l.q = q
}

// SetProfiles attaches time profiles to the P and Q setpoints. Either
// profile may be nil.
func (l *Load) SetProfiles(p, q *Profile) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.pProfile = p
	l.qProfile = q
}

// PowerAt returns the power setpoint at profile step i, falling back to
// the static setpoint for axes without a profile.
func (l *Load) PowerAt(i int) (float64, float64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	p, q := l.p, l.q
	if l.pProfile.Len() > 0 {
		p = l.pProfile.Value(i)
	}
	if l.qProfile.Len() > 0 {
		q = l.qProfile.Value(i)
	}
	return p, q
}

// Config returns the load's static configuration.
func (l *Load) Config() LoadConfig {
	return l.config
}
