package grid

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Circuit is the container for a network: buses, the lines connecting
// them, and the injection devices attached to each bus. Entities are
// added once at build time and never removed.
type Circuit struct {
	mux        *sync.Mutex
	pid        uuid.UUID
	name       string
	sbase      float64
	buses      []*Bus
	busIndex   map[uuid.UUID]*Bus
	lines      []*Line
	loads      map[uuid.UUID][]*Load
	generators map[uuid.UUID][]*Generator
	staticGens map[uuid.UUID][]*StaticGenerator
	batteries  map[uuid.UUID][]*Battery
	shunts     map[uuid.UUID][]*Shunt
}

// NewCircuit returns an empty circuit. Sbase defaults to 100 MVA when
// zero.
func NewCircuit(name string, sbase float64) (*Circuit, error) {
	if sbase == 0 {
		sbase = 100
	}
	if sbase < 0 {
		return nil, fmt.Errorf("circuit %v: negative Sbase", name)
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Circuit{
		mux:        &sync.Mutex{},
		pid:        pid,
		name:       name,
		sbase:      sbase,
		busIndex:   make(map[uuid.UUID]*Bus),
		loads:      make(map[uuid.UUID][]*Load),
		generators: make(map[uuid.UUID][]*Generator),
		staticGens: make(map[uuid.UUID][]*StaticGenerator),
		batteries:  make(map[uuid.UUID][]*Battery),
		shunts:     make(map[uuid.UUID][]*Shunt),
	}, nil
}

// PID is a getter for the circuit PID.
func (c *Circuit) PID() uuid.UUID {
	return c.pid
}

// Name is an accessor for the circuit's name.
func (c *Circuit) Name() string {
	return c.name
}

// Sbase returns the system base power in MVA.
func (c *Circuit) Sbase() float64 {
	return c.sbase
}

// AddBus registers a bus with the circuit.
func (c *Circuit) AddBus(b *Bus) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, exists := c.busIndex[b.PID()]; exists {
		return fmt.Errorf("bus %v already exists in circuit", b.Name())
	}
	c.buses = append(c.buses, b)
	c.busIndex[b.PID()] = b
	return nil
}

// AddLine registers a line. Both endpoints must already be members of the
// circuit.
func (c *Circuit) AddLine(l *Line) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[l.From().PID()]; !ok {
		return fmt.Errorf("line %v: from bus %v not in circuit", l.Name(), l.From().Name())
	}
	if _, ok := c.busIndex[l.To().PID()]; !ok {
		return fmt.Errorf("line %v: to bus %v not in circuit", l.Name(), l.To().Name())
	}
	c.lines = append(c.lines, l)
	return nil
}

// AddLoad attaches a load to the bus identified by busPID.
func (c *Circuit) AddLoad(busPID uuid.UUID, l *Load) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[busPID]; !ok {
		return fmt.Errorf("load %v: bus not in circuit", l.Name())
	}
	c.loads[busPID] = append(c.loads[busPID], l)
	return nil
}

// AddGenerator attaches a controlled generator to the bus identified by
// busPID.
func (c *Circuit) AddGenerator(busPID uuid.UUID, g *Generator) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[busPID]; !ok {
		return fmt.Errorf("generator %v: bus not in circuit", g.Name())
	}
	c.generators[busPID] = append(c.generators[busPID], g)
	return nil
}

// AddStaticGenerator attaches a static generator to the bus identified by
// busPID.
func (c *Circuit) AddStaticGenerator(busPID uuid.UUID, g *StaticGenerator) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[busPID]; !ok {
		return fmt.Errorf("static generator %v: bus not in circuit", g.Name())
	}
	c.staticGens[busPID] = append(c.staticGens[busPID], g)
	return nil
}

// AddBattery attaches a battery to the bus identified by busPID.
func (c *Circuit) AddBattery(busPID uuid.UUID, b *Battery) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[busPID]; !ok {
		return fmt.Errorf("battery %v: bus not in circuit", b.Name())
	}
	c.batteries[busPID] = append(c.batteries[busPID], b)
	return nil
}

// AddShunt attaches a shunt to the bus identified by busPID.
func (c *Circuit) AddShunt(busPID uuid.UUID, s *Shunt) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.busIndex[busPID]; !ok {
		return fmt.Errorf("shunt %v: bus not in circuit", s.Name())
	}
	c.shunts[busPID] = append(c.shunts[busPID], s)
	return nil
}

// Buses returns the circuit's buses in insertion order.
func (c *Circuit) Buses() []*Bus {
	c.mux.Lock()
	defer c.mux.Unlock()
	buses := make([]*Bus, len(c.buses))
	copy(buses, c.buses)
	return buses
}

// Lines returns the circuit's lines in insertion order.
func (c *Circuit) Lines() []*Line {
	c.mux.Lock()
	defer c.mux.Unlock()
	lines := make([]*Line, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// BusByName returns the first bus with the given name.
func (c *Circuit) BusByName(name string) (*Bus, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, b := range c.buses {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// LoadsAt returns the loads attached to the bus identified by busPID.
func (c *Circuit) LoadsAt(busPID uuid.UUID) []*Load {
	c.mux.Lock()
	defer c.mux.Unlock()
	return append([]*Load(nil), c.loads[busPID]...)
}

// GeneratorsAt returns the controlled generators attached to the bus
// identified by busPID.
func (c *Circuit) GeneratorsAt(busPID uuid.UUID) []*Generator {
	c.mux.Lock()
	defer c.mux.Unlock()
	return append([]*Generator(nil), c.generators[busPID]...)
}

// LoadByName returns the first load with the given name.
func (c *Circuit) LoadByName(name string) (*Load, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, loads := range c.loads {
		for _, l := range loads {
			if l.Name() == name {
				return l, true
			}
		}
	}
	return nil, false
}

// GeneratorByName returns the first controlled generator with the given
// name.
func (c *Circuit) GeneratorByName(name string) (*Generator, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, gens := range c.generators {
		for _, g := range gens {
			if g.Name() == name {
				return g, true
			}
		}
	}
	return nil, false
}

// BatteryByName returns the first battery with the given name.
func (c *Circuit) BatteryByName(name string) (*Battery, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, bats := range c.batteries {
		for _, b := range bats {
			if b.Name() == name {
				return b, true
			}
		}
	}
	return nil, false
}

// ProfileLen returns the longest profile attached to any device, which
// bounds a time-series run.
func (c *Circuit) ProfileLen() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	max := 0
	for _, loads := range c.loads {
		for _, l := range loads {
			if n := l.pProfile.Len(); n > max {
				max = n
			}
			if n := l.qProfile.Len(); n > max {
				max = n
			}
		}
	}
	for _, gens := range c.generators {
		for _, g := range gens {
			if n := g.pProfile.Len(); n > max {
				max = n
			}
			if n := g.vsetProfile.Len(); n > max {
				max = n
			}
		}
	}
	return max
}

// CircuitConfig is the JSON build format for a circuit.
type CircuitConfig struct {
	Name             string                  `json:"Name"`
	Sbase            float64                 `json:"Sbase"`
	Buses            []BusConfig             `json:"Buses"`
	Loads            []attachedLoad          `json:"Loads"`
	Generators       []attachedGenerator     `json:"Generators"`
	StaticGenerators []attachedStaticGen     `json:"StaticGenerators"`
	Batteries        []attachedBattery       `json:"Batteries"`
	Shunts           []attachedShunt         `json:"Shunts"`
	Lines            []attachedLine          `json:"Lines"`
	Profiles         map[string]profileEntry `json:"Profiles"`
}

type attachedLoad struct {
	Bus string `json:"Bus"`
	LoadConfig
}

type attachedGenerator struct {
	Bus string `json:"Bus"`
	GeneratorConfig
}

type attachedStaticGen struct {
	Bus string `json:"Bus"`
	StaticGeneratorConfig
}

type attachedBattery struct {
	Bus string `json:"Bus"`
	BatteryConfig
}

type attachedShunt struct {
	Bus string `json:"Bus"`
	ShuntConfig
}

type attachedLine struct {
	From string `json:"From"`
	To   string `json:"To"`
	LineConfig
}

type profileEntry struct {
	Device  string  `json:"Device"` // device name
	Axis    string  `json:"Axis"`   // "P", "Q" or "VSet"
	Profile Profile `json:"Profile"`
}

// New builds a circuit from its JSON configuration.
func New(jsonConfig []byte) (*Circuit, error) {
	config := CircuitConfig{}
	if err := json.Unmarshal(jsonConfig, &config); err != nil {
		return nil, err
	}

	c, err := NewCircuit(config.Name, config.Sbase)
	if err != nil {
		return nil, err
	}

	for _, busCfg := range config.Buses {
		b, err := NewBus(busCfg)
		if err != nil {
			return nil, err
		}
		if err := c.AddBus(b); err != nil {
			return nil, err
		}
	}

	for _, loadCfg := range config.Loads {
		b, ok := c.BusByName(loadCfg.Bus)
		if !ok {
			return nil, fmt.Errorf("load %v: unknown bus %v", loadCfg.Name, loadCfg.Bus)
		}
		l, err := NewLoad(loadCfg.LoadConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddLoad(b.PID(), l); err != nil {
			return nil, err
		}
	}

	for _, genCfg := range config.Generators {
		b, ok := c.BusByName(genCfg.Bus)
		if !ok {
			return nil, fmt.Errorf("generator %v: unknown bus %v", genCfg.Name, genCfg.Bus)
		}
		g, err := NewGenerator(genCfg.GeneratorConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddGenerator(b.PID(), g); err != nil {
			return nil, err
		}
	}

	for _, genCfg := range config.StaticGenerators {
		b, ok := c.BusByName(genCfg.Bus)
		if !ok {
			return nil, fmt.Errorf("static generator %v: unknown bus %v", genCfg.Name, genCfg.Bus)
		}
		g, err := NewStaticGenerator(genCfg.StaticGeneratorConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddStaticGenerator(b.PID(), g); err != nil {
			return nil, err
		}
	}

	for _, batCfg := range config.Batteries {
		b, ok := c.BusByName(batCfg.Bus)
		if !ok {
			return nil, fmt.Errorf("battery %v: unknown bus %v", batCfg.Name, batCfg.Bus)
		}
		bat, err := NewBattery(batCfg.BatteryConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddBattery(b.PID(), bat); err != nil {
			return nil, err
		}
	}

	for _, shuntCfg := range config.Shunts {
		b, ok := c.BusByName(shuntCfg.Bus)
		if !ok {
			return nil, fmt.Errorf("shunt %v: unknown bus %v", shuntCfg.Name, shuntCfg.Bus)
		}
		s, err := NewShunt(shuntCfg.ShuntConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddShunt(b.PID(), s); err != nil {
			return nil, err
		}
	}

	for _, lineCfg := range config.Lines {
		from, ok := c.BusByName(lineCfg.From)
		if !ok {
			return nil, fmt.Errorf("line %v: unknown bus %v", lineCfg.Name, lineCfg.From)
		}
		to, ok := c.BusByName(lineCfg.To)
		if !ok {
			return nil, fmt.Errorf("line %v: unknown bus %v", lineCfg.Name, lineCfg.To)
		}
		l, err := NewLine(from, to, lineCfg.LineConfig)
		if err != nil {
			return nil, err
		}
		if err := c.AddLine(l); err != nil {
			return nil, err
		}
	}

	for name, entry := range config.Profiles {
		if err := c.attachProfile(entry); err != nil {
			return nil, fmt.Errorf("profile %v: %v", name, err)
		}
	}

	return c, nil
}

func (c *Circuit) attachProfile(entry profileEntry) error {
	prof := entry.Profile
	if l, ok := c.LoadByName(entry.Device); ok {
		switch entry.Axis {
		case "P":
			l.SetProfiles(&prof, l.qProfile)
		case "Q":
			l.SetProfiles(l.pProfile, &prof)
		default:
			return fmt.Errorf("unknown load axis %v", entry.Axis)
		}
		return nil
	}
	if g, ok := c.GeneratorByName(entry.Device); ok {
		switch entry.Axis {
		case "P":
			g.SetProfiles(&prof, g.vsetProfile)
		case "VSet":
			g.SetProfiles(g.pProfile, &prof)
		default:
			return fmt.Errorf("unknown generator axis %v", entry.Axis)
		}
		return nil
	}
	return fmt.Errorf("unknown device %v", entry.Device)
}
