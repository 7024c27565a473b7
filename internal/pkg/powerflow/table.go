package powerflow

import (
	"fmt"
	"io"
)

// BusTable writes the per-bus result table: voltage module, angle, and
// rectangular components.
func BusTable(w io.Writer, r Results) {
	fmt.Fprintf(w, "\nBus results (%v):\n", r.Circuit)
	fmt.Fprintln(w, "Bus           Vm (p.u.)   Va (deg)    Vre (p.u.)  Vim (p.u.)  P (MW)      Q (MVAr)")
	fmt.Fprintln(w, "--------------------------------------------------------------------------------")
	for _, row := range r.BusRows() {
		fmt.Fprintf(w, "%-12s %10.4f %10.4f %11.4f %11.4f %10.3f %10.3f\n",
			row.Name, row.Vm, row.Va, row.Vreal, row.Vimag, row.P, row.Q)
	}
}

// BranchTable writes the per-line result table: power flow, current,
// loading and losses.
func BranchTable(w io.Writer, r Results) {
	fmt.Fprintf(w, "\nBranch results (%v):\n", r.Circuit)
	fmt.Fprintln(w, "Line          P (MW)      Q (MVAr)    S (MVA)     I (p.u.)    Loading (%)  Losses (MW)")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------")
	for _, row := range r.BranchRows() {
		fmt.Fprintf(w, "%-12s %10.3f %11.3f %11.3f %11.4f %12.2f %12.4f\n",
			row.Name, row.P, row.Q, row.Smag, row.Imag, row.Loading, row.LossP)
	}
}

// ReportTable writes the convergence report of the solve.
func ReportTable(w io.Writer, r Results) {
	fmt.Fprintf(w, "\nConvergence (%v):\n", r.Circuit)
	fmt.Fprintf(w, "Method: %v  Converged: %v  Error: %.3e  Iterations: %d  Elapsed: %v\n",
		r.Report.Method, r.Report.Converged, r.Report.Error, r.Report.Iterations, r.Report.Elapsed)
}
