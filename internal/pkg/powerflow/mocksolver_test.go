package powerflow

import (
	"context"
	"time"

	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
)

// MockSolver returns scripted solutions for driver tests.
type MockSolver struct {
	Voltage   []complex128
	Converged bool
	SolveErr  error
	Calls     int
	LastOpts  Options
	FailFirst bool // report non-convergence on the first call only
}

func (m *MockSolver) Solve(ctx context.Context, snp grid.Snapshot, options Options) (Solution, error) {
	m.Calls++
	m.LastOpts = options
	if m.SolveErr != nil {
		return Solution{}, m.SolveErr
	}

	voltage := m.Voltage
	if voltage == nil {
		voltage = make([]complex128, snp.NumBuses())
		for i := range voltage {
			voltage[i] = complex(snp.VSet[i], 0)
		}
	}

	converged := m.Converged
	if m.FailFirst && m.Calls == 1 {
		converged = false
	}

	return Solution{
		Voltage: voltage,
		Report: Report{
			Method:     options.Method,
			Converged:  converged,
			Error:      1e-8,
			Iterations: 3,
			Elapsed:    time.Millisecond,
		},
	}, nil
}
