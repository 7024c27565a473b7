package grid

import (
	"github.com/google/uuid"
)

// Graph is the bus connectivity view of a circuit. Inactive buses and
// lines are excluded, as are lines with an inactive endpoint.
type Graph struct {
	adjacencyList map[uuid.UUID][]uuid.UUID
	buses         map[uuid.UUID]*Bus
}

// NewGraph builds the connectivity graph of the circuit's active
// topology.
func NewGraph(c *Circuit) (Graph, error) {
	al := make(map[uuid.UUID][]uuid.UUID)
	buses := make(map[uuid.UUID]*Bus)

	for _, b := range c.Buses() {
		if !b.Active() {
			continue
		}
		al[b.PID()] = make([]uuid.UUID, 0)
		buses[b.PID()] = b
	}

	for _, l := range c.Lines() {
		if !l.Active() {
			continue
		}
		from, to := l.From().PID(), l.To().PID()
		if _, ok := al[from]; !ok {
			continue // endpoint inactive, line drops out of the active topology
		}
		if _, ok := al[to]; !ok {
			continue
		}
		al[from] = append(al[from], to)
		al[to] = append(al[to], from)
	}

	return Graph{al, buses}, nil
}

// Edges returns the buses adjacent to pid.
func (g Graph) Edges(pid uuid.UUID) []uuid.UUID {
	if edges, exists := g.adjacencyList[pid]; exists {
		return edges
	}
	return make([]uuid.UUID, 0)
}

// Islands partitions the graph into its connected components.
func (g Graph) Islands() [][]*Bus {
	visited := make(map[uuid.UUID]bool)
	islands := make([][]*Bus, 0)

	for pid := range g.adjacencyList {
		if visited[pid] {
			continue
		}
		island := make([]*Bus, 0)
		stack := []uuid.UUID{pid}
		visited[pid] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			island = append(island, g.buses[n])
			for _, adj := range g.adjacencyList[n] {
				if !visited[adj] {
					visited[adj] = true
					stack = append(stack, adj)
				}
			}
		}
		islands = append(islands, island)
	}
	return islands
}

// Unreferenced returns islands that contain no slack bus. A solver cannot
// anchor these buses to a reference voltage.
func (g Graph) Unreferenced() [][]*Bus {
	orphans := make([][]*Bus, 0)
	for _, island := range g.Islands() {
		slack := false
		for _, b := range island {
			if b.Slack() {
				slack = true
				break
			}
		}
		if !slack {
			orphans = append(orphans, island)
		}
	}
	return orphans
}
