package grid

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// BatteryConfig represents the static properties of a battery.
type BatteryConfig struct {
	Name          string  `json:"Name"`
	P             float64 `json:"P"`    // real power setpoint [MW], negative charges
	VSet          float64 `json:"VSet"` // voltage setpoint [p.u.]
	QMin          float64 `json:"QMin"` // reactive limit, lower [MVAr]
	QMax          float64 `json:"QMax"` // reactive limit, upper [MVAr]
	SNom          float64 `json:"SNom"` // nominal apparent power [MVA]
	ENom          float64 `json:"ENom"` // energy capacity [MWh]
	PMin          float64 `json:"PMin"` // dispatch limit, lower [MW]
	PMax          float64 `json:"PMax"` // dispatch limit, upper [MW]
	Cost          float64 `json:"Cost"` // operational cost [currency/MWh]
	ChargeEff     float64 `json:"ChargeEff"`
	DischargeEff  float64 `json:"DischargeEff"`
	MinSoC        float64 `json:"MinSoC"` // [0..1]
	MaxSoC        float64 `json:"MaxSoC"` // [0..1]
	SoC0          float64 `json:"SoC0"`   // initial state of charge [0..1]
	Active        bool    `json:"Active"`
}

// Battery is a voltage-controlled injection device with an energy state.
// For a solve it behaves like a generator; the energy fields bound what a
// dispatcher may ask of it.
type Battery struct {
	mux    *sync.Mutex
	pid    uuid.UUID
	config BatteryConfig
	p      float64
	vset   float64
	soc    float64
}

// NewBattery configures and returns a Battery. The voltage setpoint
// defaults to 1.0 p.u.; efficiency and state-of-charge bounds default to
// 0.9, 0.3/0.99 and an initial charge of 0.8.
func NewBattery(config BatteryConfig) (*Battery, error) {
	if config.Name == "" {
		return nil, errors.New("battery config requires a name")
	}
	if config.VSet == 0 {
		config.VSet = 1.0
	}
	if config.ChargeEff == 0 {
		config.ChargeEff = 0.9
	}
	if config.DischargeEff == 0 {
		config.DischargeEff = 0.9
	}
	if config.MinSoC == 0 {
		config.MinSoC = 0.3
	}
	if config.MaxSoC == 0 {
		config.MaxSoC = 0.99
	}
	if config.SoC0 == 0 {
		config.SoC0 = 0.8
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Battery{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: config,
		p:      config.P,
		vset:   config.VSet,
		soc:    config.SoC0,
	}, nil
}

// PID is a getter for the battery PID.
func (b *Battery) PID() uuid.UUID {
	return b.pid
}

// Name is an accessor for the battery's configured name.
func (b *Battery) Name() string {
	return b.config.Name
}

// Active reports whether the battery participates in compilation.
func (b *Battery) Active() bool {
	return b.config.Active
}

// Setpoint returns the present dispatch (P [MW], VSet [p.u.]).
func (b *Battery) Setpoint() (float64, float64) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.p, b.vset
}

// SetDispatch updates the real power setpoint. Negative values charge.
func (b *Battery) SetDispatch(p float64) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.p = p
}

// SoC returns the present state of charge [0..1].
func (b *Battery) SoC() float64 {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.soc
}

// SetSoC updates the state of charge, clamped to the configured bounds.
func (b *Battery) SetSoC(soc float64) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if soc < b.config.MinSoC {
		soc = b.config.MinSoC
	}
	if soc > b.config.MaxSoC {
		soc = b.config.MaxSoC
	}
	b.soc = soc
}

// Energy returns the stored energy in MWh.
func (b *Battery) Energy() float64 {
	return b.SoC() * b.config.ENom
}

// Config returns the battery's static configuration.
func (b *Battery) Config() BatteryConfig {
	return b.config
}
