/*
virtualsolver.go stands in for the external power-flow engine during
development and test. It replays the bus voltages held in its
configuration and fabricates a convergence report; no network equations
are solved here.
*/

package virtualsolver

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
)

// PolarVoltage is a configured solution voltage in polar form.
type PolarVoltage struct {
	Vm float64 `json:"Vm"` // [p.u.]
	Va float64 `json:"Va"` // [deg]
}

// Config represents the scripted behavior of the virtual engine.
type Config struct {
	Name       string                  `json:"Name"`
	Method     string                  `json:"Method"`
	Iterations int                     `json:"Iterations"`
	Error      float64                 `json:"Error"`
	DelayMs    int                     `json:"DelayMs"`
	Diverge    bool                    `json:"Diverge"`
	Voltages   map[string]PolarVoltage `json:"Voltages"`
}

// VirtualSolver is a powerflow.Solver backed by configuration instead of
// an engine.
type VirtualSolver struct {
	pid    uuid.UUID
	config Config
}

// New configures and returns a VirtualSolver.
func New(jsonConfig []byte) (*VirtualSolver, error) {
	config := Config{}
	if err := json.Unmarshal(jsonConfig, &config); err != nil {
		return nil, err
	}
	if config.Iterations == 0 {
		config.Iterations = 3
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &VirtualSolver{pid, config}, nil
}

// PID is a getter for the solver PID.
func (s *VirtualSolver) PID() uuid.UUID {
	return s.pid
}

// Solve returns the configured voltages for the snapshot's buses. Buses
// absent from the configuration start flat at their setpoint.
func (s *VirtualSolver) Solve(ctx context.Context, snp grid.Snapshot, options powerflow.Options) (powerflow.Solution, error) {
	start := time.Now()

	if s.config.DelayMs > 0 {
		select {
		case <-time.After(time.Duration(s.config.DelayMs) * time.Millisecond):
		case <-ctx.Done():
			return powerflow.Solution{}, ctx.Err()
		}
	}

	voltage := make([]complex128, snp.NumBuses())
	for i, name := range snp.BusNames {
		if pv, ok := s.config.Voltages[name]; ok {
			rad := pv.Va * math.Pi / 180
			voltage[i] = complex(pv.Vm*math.Cos(rad), pv.Vm*math.Sin(rad))
			continue
		}
		voltage[i] = complex(snp.VSet[i], 0)
	}

	method := s.config.Method
	if method == "" {
		method = options.Method
	}

	solErr := s.config.Error
	if solErr == 0 {
		solErr = options.Tolerance / 10
	}

	iterations := s.config.Iterations
	converged := !s.config.Diverge && iterations <= options.MaxIterations
	if !converged && solErr <= options.Tolerance {
		solErr = options.Tolerance * 1e3
	}

	return powerflow.Solution{
		Voltage: voltage,
		Report: powerflow.Report{
			Method:     method,
			Converged:  converged,
			Error:      solErr,
			Iterations: iterations,
			Elapsed:    time.Since(start),
		},
	}, nil
}
