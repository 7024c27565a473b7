package grid

import (
	"testing"

	"gotest.tools/v3/assert"
)

func threeBusCircuit(t *testing.T) *Circuit {
	t.Helper()
	c, err := NewCircuit("three bus", 100)
	assert.NilError(t, err)

	b1 := testBus(t, "Bus 1", true)
	b2 := testBus(t, "Bus 2", false)
	b3 := testBus(t, "Bus 3", false)
	assert.NilError(t, c.AddBus(b1))
	assert.NilError(t, c.AddBus(b2))
	assert.NilError(t, c.AddBus(b3))

	gen, err := NewGenerator(GeneratorConfig{Name: "slack gen", VSet: 1.02, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddGenerator(b1.PID(), gen))

	load, err := NewLoad(LoadConfig{Name: "load 2", P: 40, Q: 20, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLoad(b2.PID(), load))

	l12, err := NewLine(b1, b2, LineConfig{Name: "line 1-2", R: 0.05, X: 0.11, B: 0.02, Rate: 50, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l12))

	l23, err := NewLine(b2, b3, LineConfig{Name: "line 2-3", R: 0.04, X: 0.09, B: 0.02, Rate: 30, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l23))

	return c
}

func TestCompileOrdering(t *testing.T) {
	c := threeBusCircuit(t)

	snp, err := c.Compile()
	assert.NilError(t, err)
	assert.Equal(t, snp.NumBuses(), 3)
	assert.Equal(t, snp.NumLines(), 2)
	assert.Equal(t, snp.BusNames[0], "Bus 1")
	assert.Equal(t, snp.Kinds[0], Slack)
	assert.Equal(t, snp.Kinds[1], PQ)
	assert.Equal(t, snp.From[0], 0)
	assert.Equal(t, snp.To[0], 1)
}

func TestCompilePerUnitInjection(t *testing.T) {
	c := threeBusCircuit(t)

	snp, err := c.Compile()
	assert.NilError(t, err)

	// load 2: 40 MW, 20 MVAr on 100 MVA base
	assert.Equal(t, real(snp.Power[1]), -0.4)
	assert.Equal(t, imag(snp.Power[1]), -0.2)
	assert.Equal(t, snp.VSet[0], 1.02)
}

func TestCompileExcludesInactive(t *testing.T) {
	c := threeBusCircuit(t)
	b4, err := NewBus(BusConfig{Name: "Bus 4", VNom: 20, Active: false})
	assert.NilError(t, err)
	assert.NilError(t, c.AddBus(b4))

	snp, err := c.Compile()
	assert.NilError(t, err)
	assert.Equal(t, snp.NumBuses(), 3)
}

func TestCompileDropsLinesWithInactiveEndpoint(t *testing.T) {
	c, err := NewCircuit("partial", 100)
	assert.NilError(t, err)

	b1 := testBus(t, "Bus 1", true)
	b2 := testBus(t, "Bus 2", false)
	b3, err := NewBus(BusConfig{Name: "Bus 3", VNom: 20, Active: false})
	assert.NilError(t, err)
	assert.NilError(t, c.AddBus(b1))
	assert.NilError(t, c.AddBus(b2))
	assert.NilError(t, c.AddBus(b3))

	gen, err := NewGenerator(GeneratorConfig{Name: "slack gen", VSet: 1.0, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddGenerator(b1.PID(), gen))

	l12, err := NewLine(b1, b2, LineConfig{Name: "line 1-2", R: 0.05, X: 0.11, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l12))

	// active line into an inactive bus compiles away with it
	l23, err := NewLine(b2, b3, LineConfig{Name: "line 2-3", R: 0.04, X: 0.09, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l23))

	snp, err := c.Compile()
	assert.NilError(t, err)
	assert.Equal(t, snp.NumBuses(), 2)
	assert.Equal(t, snp.NumLines(), 1)
	assert.Equal(t, snp.LineNames[0], "line 1-2")
}

func TestCompileCurrentComponents(t *testing.T) {
	c := threeBusCircuit(t)
	b3, ok := c.BusByName("Bus 3")
	assert.Assert(t, ok)

	load, err := NewLoad(LoadConfig{Name: "load 3", Ir: 10, Ii: 5, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLoad(b3.PID(), load))

	snp, err := c.Compile()
	assert.NilError(t, err)

	// current components: 10 MW, 5 MVAr at V=1 on 100 MVA base
	assert.Equal(t, real(snp.Ibus[2]), -0.1)
	assert.Equal(t, imag(snp.Ibus[2]), -0.05)
	assert.Equal(t, snp.Ibus[1], complex(0, 0))
}

func TestCompileBatteryInjection(t *testing.T) {
	c := threeBusCircuit(t)
	b3, ok := c.BusByName("Bus 3")
	assert.Assert(t, ok)

	bat, err := NewBattery(BatteryConfig{Name: "ess 3", P: 15, VSet: 1.01, ENom: 60, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddBattery(b3.PID(), bat))

	snp, err := c.Compile()
	assert.NilError(t, err)

	assert.Equal(t, real(snp.Power[2]), 0.15)
	assert.Equal(t, snp.VSet[2], 1.01)
	assert.Equal(t, snp.Kinds[2], PV)

	// charging draws power like a load
	bat.SetDispatch(-10)
	snp, err = c.Compile()
	assert.NilError(t, err)
	assert.Equal(t, real(snp.Power[2]), -0.1)
}

func TestCompileRejectsNoSlack(t *testing.T) {
	c, _ := NewCircuit("no slack", 100)
	b1 := testBus(t, "Bus 1", false)
	b2 := testBus(t, "Bus 2", false)
	assert.NilError(t, c.AddBus(b1))
	assert.NilError(t, c.AddBus(b2))
	l, err := NewLine(b1, b2, LineConfig{Name: "line 1-2", R: 0.05, X: 0.11, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l))

	_, err = c.Compile()
	assert.ErrorContains(t, err, "slack")
}

func TestCompileRejectsUnreferencedIsland(t *testing.T) {
	c := threeBusCircuit(t)

	// island disconnected from the slack
	b5 := testBus(t, "Bus 5", false)
	b6 := testBus(t, "Bus 6", false)
	assert.NilError(t, c.AddBus(b5))
	assert.NilError(t, c.AddBus(b6))
	l, err := NewLine(b5, b6, LineConfig{Name: "line 5-6", R: 0.05, X: 0.11, Active: true})
	assert.NilError(t, err)
	assert.NilError(t, c.AddLine(l))

	_, err = c.Compile()
	assert.ErrorContains(t, err, "islands")
}

func TestCompileAtAppliesProfiles(t *testing.T) {
	c := threeBusCircuit(t)
	load, ok := c.LoadByName("load 2")
	assert.Assert(t, ok)
	load.SetProfiles(&Profile{Values: []float64{10, 20, 30}}, nil)

	snp, err := c.CompileAt(2)
	assert.NilError(t, err)
	assert.Equal(t, real(snp.Power[1]), -0.3)
	assert.Equal(t, imag(snp.Power[1]), -0.2)

	assert.Equal(t, c.ProfileLen(), 3)
}

func TestGraphIslands(t *testing.T) {
	c := threeBusCircuit(t)

	g, err := NewGraph(c)
	assert.NilError(t, err)
	assert.Equal(t, len(g.Islands()), 1)
	assert.Equal(t, len(g.Unreferenced()), 0)

	b5 := testBus(t, "Bus 5", false)
	assert.NilError(t, c.AddBus(b5))

	g, err = NewGraph(c)
	assert.NilError(t, err)
	assert.Equal(t, len(g.Islands()), 2)
	assert.Equal(t, len(g.Unreferenced()), 1)
}
