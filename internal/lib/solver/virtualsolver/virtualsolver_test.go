package virtualsolver

import (
	"context"
	"math"
	"testing"

	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
	"gotest.tools/v3/assert"
)

func testSnapshot(t *testing.T) grid.Snapshot {
	t.Helper()
	c, err := grid.New([]byte(`{
		"Name": "two bus",
		"Sbase": 100,
		"Buses": [
			{"Name": "Bus 1", "VNom": 20, "Slack": true, "Active": true},
			{"Name": "Bus 2", "VNom": 20, "Active": true}
		],
		"Generators": [
			{"Bus": "Bus 1", "Name": "slack gen", "VSet": 1.05, "Active": true}
		],
		"Loads": [
			{"Bus": "Bus 2", "Name": "load 2", "P": 40, "Q": 20, "Active": true}
		],
		"Lines": [
			{"From": "Bus 1", "To": "Bus 2", "Name": "line 1-2", "R": 0.05, "X": 0.11, "Rate": 50, "Active": true}
		]
	}`))
	assert.NilError(t, err)
	snp, err := c.Compile()
	assert.NilError(t, err)
	return snp
}

func TestSolveReplaysConfiguredVoltages(t *testing.T) {
	s, err := New([]byte(`{
		"Name": "virtual engine",
		"Method": "NR",
		"Iterations": 4,
		"Error": 1e-9,
		"Voltages": {"Bus 2": {"Vm": 0.95, "Va": -2.0}}
	}`))
	assert.NilError(t, err)

	sol, err := s.Solve(context.Background(), testSnapshot(t), powerflow.DefaultOptions())
	assert.NilError(t, err)
	assert.Equal(t, len(sol.Voltage), 2)

	// Bus 1 absent from config: flat start at its setpoint
	assert.Equal(t, sol.Voltage[0], complex(1.05, 0))

	vm := math.Hypot(real(sol.Voltage[1]), imag(sol.Voltage[1]))
	if math.Abs(vm-0.95) > 1e-12 {
		t.Fatalf("Bus 2 magnitude %v, want 0.95", vm)
	}
	assert.Assert(t, imag(sol.Voltage[1]) < 0, "negative angle should give negative imaginary part")

	assert.Assert(t, sol.Report.Converged)
	assert.Equal(t, sol.Report.Iterations, 4)
	assert.Equal(t, sol.Report.Method, "NR")
}

func TestSolveDivergence(t *testing.T) {
	s, err := New([]byte(`{"Diverge": true}`))
	assert.NilError(t, err)

	opts := powerflow.DefaultOptions()
	sol, err := s.Solve(context.Background(), testSnapshot(t), opts)
	assert.NilError(t, err)
	assert.Assert(t, !sol.Report.Converged)
	assert.Assert(t, sol.Report.Error > opts.Tolerance)
}

func TestSolveIterationBudget(t *testing.T) {
	s, err := New([]byte(`{"Iterations": 40}`))
	assert.NilError(t, err)

	opts := powerflow.DefaultOptions() // 25 iteration budget
	sol, err := s.Solve(context.Background(), testSnapshot(t), opts)
	assert.NilError(t, err)
	assert.Assert(t, !sol.Report.Converged)
}

func TestSolveHonorsContext(t *testing.T) {
	s, err := New([]byte(`{"DelayMs": 1000}`))
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Solve(ctx, testSnapshot(t), powerflow.DefaultOptions())
	assert.ErrorContains(t, err, "context canceled")
}

func TestDriverIntegration(t *testing.T) {
	s, err := New([]byte(`{"Voltages": {"Bus 2": {"Vm": 0.95, "Va": -2.0}}}`))
	assert.NilError(t, err)

	d, err := powerflow.NewDriver([]byte(`{}`), s)
	assert.NilError(t, err)

	c, err := grid.New([]byte(`{
		"Name": "two bus",
		"Sbase": 100,
		"Buses": [
			{"Name": "Bus 1", "VNom": 20, "Slack": true, "Active": true},
			{"Name": "Bus 2", "VNom": 20, "Active": true}
		],
		"Generators": [{"Bus": "Bus 1", "Name": "slack gen", "VSet": 1.05, "Active": true}],
		"Loads": [{"Bus": "Bus 2", "Name": "load 2", "P": 40, "Q": 20, "Active": true}],
		"Lines": [{"From": "Bus 1", "To": "Bus 2", "Name": "line 1-2", "R": 0.05, "X": 0.11, "Rate": 50, "Active": true}]
	}`))
	assert.NilError(t, err)

	results, err := d.Run(context.Background(), c)
	assert.NilError(t, err)
	assert.Assert(t, results.Report.Converged)
	// power flows from the slack toward the load
	assert.Assert(t, real(results.Sfrom[0]) > 0)
	assert.Assert(t, real(results.Losses[0]) > 0)
}
