package powerflow

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"gotest.tools/v3/assert"
)

func almostEqual(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v (tol %v)", got, want, tol)
	}
}

func twoBusCircuit(t *testing.T) *grid.Circuit {
	t.Helper()
	c, err := grid.New([]byte(`{
		"Name": "two bus",
		"Sbase": 100,
		"Buses": [
			{"Name": "Bus 1", "VNom": 20, "Slack": true, "Active": true},
			{"Name": "Bus 2", "VNom": 20, "Active": true}
		],
		"Generators": [
			{"Bus": "Bus 1", "Name": "slack gen", "VSet": 1.0, "Active": true}
		],
		"Loads": [
			{"Bus": "Bus 2", "Name": "load 2", "P": 40, "Q": 20, "Active": true}
		],
		"Lines": [
			{"From": "Bus 1", "To": "Bus 2", "Name": "line 1-2", "R": 0, "X": 0.1, "Rate": 50, "Active": true}
		]
	}`))
	assert.NilError(t, err)
	return c
}

func newTestDriver(t *testing.T, solver Solver) Driver {
	t.Helper()
	d, err := NewDriver([]byte(`{"Method": "NR", "Tolerance": 1e-6, "MaxIterations": 25}`), solver)
	assert.NilError(t, err)
	return d
}

func TestNewDriverRequiresSolver(t *testing.T) {
	_, err := NewDriver([]byte(`{}`), nil)
	assert.ErrorContains(t, err, "solver backend")
}

func TestNewDriverDefaults(t *testing.T) {
	d, err := NewDriver([]byte(`{}`), &MockSolver{Converged: true})
	assert.NilError(t, err)
	assert.Equal(t, d.Options().Method, "NR")
	assert.Equal(t, d.Options().MaxIterations, 25)
}

func TestRunDerivesLineFlow(t *testing.T) {
	// X-only line, hand-solvable: Vf=1.0, Vt=0.9 across Z=j0.1 gives
	// If=-j1.0, Sf=j100 MVA, St=-j90 MVA, losses j10 MVAr.
	solver := &MockSolver{
		Voltage:   []complex128{complex(1, 0), complex(0.9, 0)},
		Converged: true,
	}
	d := newTestDriver(t, solver)

	results, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.NilError(t, err)

	assert.Equal(t, len(results.BusNames), 2)
	assert.Equal(t, len(results.LineNames), 1)

	almostEqual(t, real(results.Sfrom[0]), 0, 1e-9)
	almostEqual(t, imag(results.Sfrom[0]), 100, 1e-9)
	almostEqual(t, real(results.Losses[0]), 0, 1e-9)
	almostEqual(t, imag(results.Losses[0]), 10, 1e-9)
	almostEqual(t, results.Loading[0], 2.0, 1e-9) // 100 MVA over a 50 MVA rating
	almostEqual(t, real(results.Vbranch[0]), 0.1, 1e-9)

	assert.Assert(t, results.Report.Converged)
	assert.Equal(t, results.Step, -1)
}

func TestRunStoresLatest(t *testing.T) {
	d := newTestDriver(t, &MockSolver{Converged: true})

	_, ok := d.Latest()
	assert.Assert(t, !ok)

	_, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.NilError(t, err)

	latest, ok := d.Latest()
	assert.Assert(t, ok)
	assert.Equal(t, latest.Circuit, "two bus")
}

func TestRunRejectsShortSolution(t *testing.T) {
	solver := &MockSolver{Voltage: []complex128{complex(1, 0)}, Converged: true}
	d := newTestDriver(t, solver)

	_, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.ErrorContains(t, err, "1 voltages for 2 buses")
}

func TestRunWrapsSolverError(t *testing.T) {
	solver := &MockSolver{SolveErr: errors.New("engine unreachable")}
	d := newTestDriver(t, solver)

	_, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.ErrorContains(t, err, "engine unreachable")
}

func TestRetryDoublesIterations(t *testing.T) {
	solver := &MockSolver{Converged: true, FailFirst: true}
	d, err := NewDriver([]byte(`{"MaxIterations": 10, "Retry": true}`), solver)
	assert.NilError(t, err)

	results, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.NilError(t, err)
	assert.Equal(t, solver.Calls, 2)
	assert.Equal(t, solver.LastOpts.MaxIterations, 20)
	assert.Assert(t, results.Report.Converged)
}

func TestRunProfile(t *testing.T) {
	c := twoBusCircuit(t)
	load, ok := c.LoadByName("load 2")
	assert.Assert(t, ok)
	load.SetProfiles(&grid.Profile{Values: []float64{10, 20, 30, 40}}, nil)

	d := newTestDriver(t, &MockSolver{Converged: true})
	series, err := d.RunProfile(context.Background(), c, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(series), 4)
	assert.Equal(t, series[2].Step, 2)
}

func TestRunProfileRequiresProfiles(t *testing.T) {
	d := newTestDriver(t, &MockSolver{Converged: true})
	_, err := d.RunProfile(context.Background(), twoBusCircuit(t), 0)
	assert.ErrorContains(t, err, "no attached profiles")
}

func TestRunProfileHonorsContext(t *testing.T) {
	c := twoBusCircuit(t)
	load, _ := c.LoadByName("load 2")
	load.SetProfiles(&grid.Profile{Values: []float64{10, 20, 30}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDriver(t, &MockSolver{Converged: true})
	_, err := d.RunProfile(ctx, c, 0)
	assert.ErrorContains(t, err, "context canceled")
}

func TestTables(t *testing.T) {
	solver := &MockSolver{
		Voltage:   []complex128{complex(1, 0), complex(0.9, 0)},
		Converged: true,
	}
	d := newTestDriver(t, solver)
	results, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.NilError(t, err)

	var bus strings.Builder
	BusTable(&bus, results)
	assert.Assert(t, strings.Contains(bus.String(), "Bus 1"))
	assert.Assert(t, strings.Contains(bus.String(), "Vm (p.u.)"))

	var branch strings.Builder
	BranchTable(&branch, results)
	assert.Assert(t, strings.Contains(branch.String(), "line 1-2"))
	assert.Assert(t, strings.Contains(branch.String(), "Loading"))

	var report strings.Builder
	ReportTable(&report, results)
	assert.Assert(t, strings.Contains(report.String(), "Converged: true"))
}

func TestBusRowsAngleDegrees(t *testing.T) {
	solver := &MockSolver{
		Voltage:   []complex128{complex(1, 0), complex(0, 0.9)},
		Converged: true,
	}
	d := newTestDriver(t, solver)
	results, err := d.Run(context.Background(), twoBusCircuit(t))
	assert.NilError(t, err)

	rows := results.BusRows()
	almostEqual(t, rows[0].Va, 0, 1e-9)
	almostEqual(t, rows[1].Va, 90, 1e-9)
	almostEqual(t, rows[1].Vm, 0.9, 1e-9)
}
