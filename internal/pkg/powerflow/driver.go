package powerflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/cmplx"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
)

// Driver compiles a circuit, delegates the solution to the backend
// engine, and derives the line flow quantities from the voltages the
// engine returns. The derivation is direct circuit algebra on the solved
// state; the iterative solution itself belongs to the backend.
type Driver struct {
	mux     *sync.Mutex
	pid     uuid.UUID
	solver  Solver
	options Options
	latest  *Results
}

// NewDriver configures and returns a Driver.
func NewDriver(jsonConfig []byte, solver Solver) (Driver, error) {
	if solver == nil {
		return Driver{}, fmt.Errorf("driver requires a solver backend")
	}
	options := Options{}
	if err := json.Unmarshal(jsonConfig, &options); err != nil {
		return Driver{}, err
	}
	options = options.withDefaults()

	pid, err := uuid.NewUUID()
	if err != nil {
		return Driver{}, err
	}

	return Driver{
		mux:     &sync.Mutex{},
		pid:     pid,
		solver:  solver,
		options: options,
	}, nil
}

// PID is a getter for the driver PID.
func (d *Driver) PID() uuid.UUID {
	return d.pid
}

// Options returns the configured solve options.
func (d *Driver) Options() Options {
	return d.options
}

// Latest returns the most recent results, if any solve has completed.
func (d *Driver) Latest() (Results, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.latest == nil {
		return Results{}, false
	}
	return *d.latest, true
}

// Run compiles the circuit at its present setpoints and solves it.
func (d *Driver) Run(ctx context.Context, c *grid.Circuit) (Results, error) {
	snp, err := c.Compile()
	if err != nil {
		return Results{}, fmt.Errorf("compile %v: %v", c.Name(), err)
	}
	return d.RunSnapshot(ctx, snp)
}

// RunSnapshot solves a previously compiled snapshot.
func (d *Driver) RunSnapshot(ctx context.Context, snp grid.Snapshot) (Results, error) {
	results, err := d.solve(ctx, snp, -1)
	if err != nil {
		return Results{}, err
	}
	d.mux.Lock()
	d.latest = &results
	d.mux.Unlock()
	return results, nil
}

// RunProfile compiles and solves the circuit at each profile step in
// [0, steps). A steps value of zero runs the full attached profile
// length.
func (d *Driver) RunProfile(ctx context.Context, c *grid.Circuit, steps int) ([]Results, error) {
	if steps <= 0 {
		steps = c.ProfileLen()
	}
	if steps == 0 {
		return nil, fmt.Errorf("circuit %v has no attached profiles", c.Name())
	}

	series := make([]Results, 0, steps)
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return series, ctx.Err()
		default:
		}
		snp, err := c.CompileAt(i)
		if err != nil {
			return series, fmt.Errorf("compile %v step %d: %v", c.Name(), i, err)
		}
		results, err := d.solve(ctx, snp, i)
		if err != nil {
			return series, err
		}
		series = append(series, results)
	}

	if len(series) > 0 {
		last := series[len(series)-1]
		d.mux.Lock()
		d.latest = &last
		d.mux.Unlock()
	}
	return series, nil
}

func (d *Driver) solve(ctx context.Context, snp grid.Snapshot, step int) (Results, error) {
	sol, err := d.solver.Solve(ctx, snp, d.options)
	if err != nil {
		return Results{}, fmt.Errorf("solve %v: %v", snp.Name, err)
	}

	if !sol.Report.Converged && d.options.Retry {
		retry := d.options
		retry.MaxIterations *= 2
		log.Printf("[Driver] %v did not converge (err %.3e), retrying with %d iterations\n",
			snp.Name, sol.Report.Error, retry.MaxIterations)
		sol, err = d.solver.Solve(ctx, snp, retry)
		if err != nil {
			return Results{}, fmt.Errorf("solve %v (retry): %v", snp.Name, err)
		}
	}

	if len(sol.Voltage) != snp.NumBuses() {
		return Results{}, fmt.Errorf("solve %v: backend returned %d voltages for %d buses",
			snp.Name, len(sol.Voltage), snp.NumBuses())
	}

	results := derive(snp, sol)
	results.Step = step
	results.Timestamp = time.Now()

	if !results.Report.Converged {
		log.Printf("[Driver] %v did not converge: error %.3e after %d iterations\n",
			snp.Name, results.Report.Error, results.Report.Iterations)
	}
	return results, nil
}

// derive computes line flows, losses and bus injections from the solved
// voltages by Ohm's law on the compiled line parameters.
func derive(snp grid.Snapshot, sol Solution) Results {
	n, m := snp.NumBuses(), snp.NumLines()
	r := Results{
		Circuit:   snp.Name,
		BusNames:  append([]string(nil), snp.BusNames...),
		Voltage:   append([]complex128(nil), sol.Voltage...),
		Sbus:      make([]complex128, n),
		LineNames: append([]string(nil), snp.LineNames...),
		Sfrom:     make([]complex128, m),
		Sto:       make([]complex128, m),
		Ibranch:   make([]complex128, m),
		Vbranch:   make([]complex128, m),
		Loading:   make([]float64, m),
		Losses:    make([]complex128, m),
		Report:    sol.Report,
	}

	// per-bus current accumulator in p.u.
	ibus := make([]complex128, n)

	for k := 0; k < m; k++ {
		f, t := snp.From[k], snp.To[k]
		vf, vt := sol.Voltage[f], sol.Voltage[t]
		ys := 1 / snp.Z[k]
		ysh := complex(0, snp.Bc[k]/2)

		ifrom := (vf-vt)*ys + vf*ysh
		ito := (vt-vf)*ys + vt*ysh

		sfrom := vf * cmplx.Conj(ifrom) * complex(snp.Sbase, 0)
		sto := vt * cmplx.Conj(ito) * complex(snp.Sbase, 0)

		r.Ibranch[k] = ifrom
		r.Vbranch[k] = vf - vt
		r.Sfrom[k] = sfrom
		r.Sto[k] = sto
		r.Losses[k] = sfrom + sto
		if snp.Rate[k] > 0 {
			r.Loading[k] = cmplx.Abs(sfrom) / snp.Rate[k]
		}

		ibus[f] += ifrom
		ibus[t] += ito
	}

	for i := 0; i < n; i++ {
		ibus[i] += snp.Yshunt[i] * sol.Voltage[i]
		r.Sbus[i] = sol.Voltage[i] * cmplx.Conj(ibus[i]) * complex(snp.Sbase, 0)
	}

	return r
}
