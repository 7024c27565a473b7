package powerflow

import (
	"context"
	"time"

	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
)

// Report is the convergence metadata returned by a backend for one solve.
type Report struct {
	Method     string        `json:"Method"`
	Converged  bool          `json:"Converged"`
	Error      float64       `json:"Error"`
	Iterations int           `json:"Iterations"`
	Elapsed    time.Duration `json:"Elapsed"`
}

// Solution is the raw engine output: one complex voltage per compiled
// bus, in snapshot order, plus the convergence report.
type Solution struct {
	Voltage []complex128
	Report  Report
}

// Solver is the seam to the power-flow engine. The engine mathematics
// lives behind this interface; implementations are under internal/lib.
type Solver interface {
	Solve(ctx context.Context, snp grid.Snapshot, options Options) (Solution, error)
}
