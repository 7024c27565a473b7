package powerflow

import (
	"math"
	"math/cmplx"
	"time"
)

// Results is the read-only artifact of one solve: per-bus voltages and
// injections, per-line flows, and the convergence report. Power
// quantities are in MW/MVAr/MVA, voltages and currents in p.u.
type Results struct {
	Circuit   string
	Timestamp time.Time
	Step      int // profile step, -1 for a snapshot solve

	BusNames []string
	Voltage  []complex128 // [p.u.]
	Sbus     []complex128 // computed bus injection [MVA]

	LineNames []string
	Sfrom     []complex128 // sending-end power [MVA]
	Sto       []complex128 // receiving-end power [MVA]
	Ibranch   []complex128 // sending-end current [p.u.]
	Vbranch   []complex128 // voltage increment across the line [p.u.]
	Loading   []float64    // [p.u. of rating]
	Losses    []complex128 // [MVA]

	Report Report
}

// BusRow is the flat, serializable form of one bus result.
type BusRow struct {
	Name  string  `json:"Name"`
	Vm    float64 `json:"Vm"`    // [p.u.]
	Va    float64 `json:"Va"`    // [deg]
	Vreal float64 `json:"Vreal"` // [p.u.]
	Vimag float64 `json:"Vimag"` // [p.u.]
	P     float64 `json:"P"`     // [MW]
	Q     float64 `json:"Q"`     // [MVAr]
}

// BranchRow is the flat, serializable form of one line result.
type BranchRow struct {
	Name     string  `json:"Name"`
	P        float64 `json:"P"`        // sending end [MW]
	Q        float64 `json:"Q"`        // sending end [MVAr]
	Smag     float64 `json:"Smag"`     // [MVA]
	Imag     float64 `json:"Imag"`     // current magnitude [p.u.]
	Loading  float64 `json:"Loading"`  // [%]
	LossP    float64 `json:"LossP"`    // [MW]
	LossQ    float64 `json:"LossQ"`    // [MVAr]
	VdropMag float64 `json:"VdropMag"` // [p.u.]
}

// BusRows flattens the per-bus results for serialization and display.
func (r Results) BusRows() []BusRow {
	rows := make([]BusRow, len(r.BusNames))
	for i, name := range r.BusNames {
		v := r.Voltage[i]
		rows[i] = BusRow{
			Name:  name,
			Vm:    cmplx.Abs(v),
			Va:    cmplx.Phase(v) * 180 / math.Pi,
			Vreal: real(v),
			Vimag: imag(v),
			P:     real(r.Sbus[i]),
			Q:     imag(r.Sbus[i]),
		}
	}
	return rows
}

// BranchRows flattens the per-line results for serialization and display.
// Loading is reported in percent of the line rating.
func (r Results) BranchRows() []BranchRow {
	rows := make([]BranchRow, len(r.LineNames))
	for i, name := range r.LineNames {
		rows[i] = BranchRow{
			Name:     name,
			P:        real(r.Sfrom[i]),
			Q:        imag(r.Sfrom[i]),
			Smag:     cmplx.Abs(r.Sfrom[i]),
			Imag:     cmplx.Abs(r.Ibranch[i]),
			Loading:  r.Loading[i] * 100,
			LossP:    real(r.Losses[i]),
			LossQ:    imag(r.Losses[i]),
			VdropMag: cmplx.Abs(r.Vbranch[i]),
		}
	}
	return rows
}

// Record is the flat form of a complete Results, used by the database
// handlers, datastreams and the webservice.
type Record struct {
	Circuit   string      `json:"Circuit"`
	Timestamp time.Time   `json:"Timestamp"`
	Step      int         `json:"Step"`
	Buses     []BusRow    `json:"Buses"`
	Branches  []BranchRow `json:"Branches"`
	Report    Report      `json:"Report"`
}

// Flatten converts the Results into its serializable Record form.
func (r Results) Flatten() Record {
	return Record{
		Circuit:   r.Circuit,
		Timestamp: r.Timestamp,
		Step:      r.Step,
		Buses:     r.BusRows(),
		Branches:  r.BranchRows(),
		Report:    r.Report,
	}
}
