package grid

import (
	"errors"

	"github.com/google/uuid"
)

// BusKind classifies a bus for the solver backend.
type BusKind int

const (
	// PQ buses hold a fixed power injection.
	PQ BusKind = iota
	// PV buses hold fixed real power and voltage magnitude.
	PV
	// Slack buses hold the reference voltage and absorb the mismatch.
	Slack
)

func (k BusKind) String() string {
	switch k {
	case PV:
		return "PV"
	case Slack:
		return "Slack"
	default:
		return "PQ"
	}
}

// Snapshot is the compiled, indexed form of a circuit handed to a solver
// backend. It is pure data: bus ordering, per unit injections and branch
// parameters. No network equations are formed here.
type Snapshot struct {
	Name     string
	Sbase    float64
	BusPIDs  []uuid.UUID
	BusNames []string
	Kinds    []BusKind
	VNom     []float64    // [kV]
	VMin     []float64    // [p.u.]
	VMax     []float64    // [p.u.]
	Power    []complex128 // net scheduled injection [p.u.]
	Ibus     []complex128 // net scheduled current injection at V=1 [p.u.]
	Yshunt   []complex128 // aggregated bus shunt admittance [p.u.]
	VSet     []float64    // voltage setpoint for PV/Slack buses [p.u.]

	LinePIDs  []uuid.UUID
	LineNames []string
	From      []int
	To        []int
	Z         []complex128 // series impedance [p.u.]
	Bc        []float64    // total line charging susceptance [p.u.]
	Rate      []float64    // [MVA]
}

// NumBuses returns the number of compiled buses.
func (s Snapshot) NumBuses() int {
	return len(s.BusPIDs)
}

// NumLines returns the number of compiled lines.
func (s Snapshot) NumLines() int {
	return len(s.LinePIDs)
}

// Compile flattens the circuit's active topology into a Snapshot using
// the present device setpoints.
func (c *Circuit) Compile() (Snapshot, error) {
	return c.compile(-1)
}

// CompileAt flattens the circuit at profile step i. Devices without
// profiles contribute their static setpoints.
func (c *Circuit) CompileAt(step int) (Snapshot, error) {
	if step < 0 {
		return Snapshot{}, errors.New("profile step must be non-negative")
	}
	return c.compile(step)
}

func (c *Circuit) compile(step int) (Snapshot, error) {
	graph, err := NewGraph(c)
	if err != nil {
		return Snapshot{}, err
	}
	if orphans := graph.Unreferenced(); len(orphans) > 0 {
		return Snapshot{}, errors.New("circuit contains islands without a slack bus")
	}

	snp := Snapshot{Name: c.Name(), Sbase: c.Sbase()}
	index := make(map[uuid.UUID]int)

	for _, b := range c.Buses() {
		if !b.Active() {
			continue
		}
		i := len(snp.BusPIDs)
		index[b.PID()] = i

		vmin, vmax := b.Limits()
		snp.BusPIDs = append(snp.BusPIDs, b.PID())
		snp.BusNames = append(snp.BusNames, b.Name())
		snp.VNom = append(snp.VNom, b.VNom())
		snp.VMin = append(snp.VMin, vmin)
		snp.VMax = append(snp.VMax, vmax)

		power, ibus, yshunt, vset, controlled := c.busInjection(b.PID(), step)
		snp.Power = append(snp.Power, power)
		snp.Ibus = append(snp.Ibus, ibus)
		snp.Yshunt = append(snp.Yshunt, yshunt)
		snp.VSet = append(snp.VSet, vset)

		kind := PQ
		switch {
		case b.Slack():
			kind = Slack
		case controlled:
			kind = PV
		}
		snp.Kinds = append(snp.Kinds, kind)
	}

	if len(snp.BusPIDs) == 0 {
		return Snapshot{}, errors.New("circuit has no active buses")
	}

	slackFound := false
	for _, k := range snp.Kinds {
		if k == Slack {
			slackFound = true
			break
		}
	}
	if !slackFound {
		return Snapshot{}, errors.New("circuit has no slack bus")
	}

	for _, l := range c.Lines() {
		if !l.Active() {
			continue
		}
		from, ok := index[l.From().PID()]
		if !ok {
			continue // endpoint inactive, line compiles away
		}
		to, ok := index[l.To().PID()]
		if !ok {
			continue
		}
		snp.LinePIDs = append(snp.LinePIDs, l.PID())
		snp.LineNames = append(snp.LineNames, l.Name())
		snp.From = append(snp.From, from)
		snp.To = append(snp.To, to)
		snp.Z = append(snp.Z, l.Impedance())
		snp.Bc = append(snp.Bc, l.Charging())
		snp.Rate = append(snp.Rate, l.Rate())
	}

	return snp, nil
}

// busInjection aggregates the devices at a bus into a net scheduled
// power injection, current injection and shunt admittance in p.u.
// Controlled is true when an active generator regulates the bus voltage.
func (c *Circuit) busInjection(busPID uuid.UUID, step int) (complex128, complex128, complex128, float64, bool) {
	sbase := c.Sbase()
	c.mux.Lock()
	defer c.mux.Unlock()
	var p, q, g, b, ir, ii float64
	vset := 1.0
	controlled := false

	for _, load := range c.loads[busPID] {
		if !load.Active() {
			continue
		}
		var lp, lq float64
		if step < 0 {
			lp, lq = load.Power()
		} else {
			lp, lq = load.PowerAt(step)
		}
		p -= lp
		q -= lq
		cfg := load.Config()
		g -= cfg.G
		b -= cfg.B
		ir -= cfg.Ir
		ii -= cfg.Ii
	}

	for _, gen := range c.generators[busPID] {
		if !gen.Active() {
			continue
		}
		var gp, gv float64
		if step < 0 {
			gp, gv = gen.Setpoint()
		} else {
			gp, gv = gen.SetpointAt(step)
		}
		p += gp
		vset = gv
		controlled = true
	}

	for _, bat := range c.batteries[busPID] {
		if !bat.Active() {
			continue
		}
		bp, bv := bat.Setpoint()
		p += bp
		vset = bv
		controlled = true
	}

	for _, gen := range c.staticGens[busPID] {
		if !gen.Active() {
			continue
		}
		gp, gq := gen.Power()
		p += gp
		q += gq
	}

	for _, shunt := range c.shunts[busPID] {
		if !shunt.Active() {
			continue
		}
		sg, sb := shunt.Admittance()
		g += sg
		b += sb
	}

	return complex(p/sbase, q/sbase), complex(ir/sbase, ii/sbase), complex(g/sbase, b/sbase), vset, controlled
}
