package root

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
)

// System is the root node: it owns the circuit and the solve driver and
// broadcasts each new result set to subscribed handlers.
type System struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	publisher *msg.PubSub
	circuit   *grid.Circuit
	driver    *powerflow.Driver
	stop      chan bool
}

// Summary is the payload published on the Config topic.
type Summary struct {
	Circuit string `json:"Circuit"`
	Buses   int    `json:"Buses"`
	Lines   int    `json:"Lines"`
	Method  string `json:"Method"`
}

// NewSystem assembles the root node from a circuit and a driver.
func NewSystem(circuit *grid.Circuit, driver *powerflow.Driver) (*System, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &System{
		mux:       &sync.Mutex{},
		pid:       pid,
		publisher: msg.NewPublisher(pid),
		circuit:   circuit,
		driver:    driver,
		stop:      make(chan bool, 1),
	}, nil
}

// PID is a getter for the system PID.
func (s *System) PID() uuid.UUID {
	return s.pid
}

// Circuit returns the system's circuit.
func (s *System) Circuit() *grid.Circuit {
	return s.circuit
}

// Driver returns the system's solve driver.
func (s *System) Driver() *powerflow.Driver {
	return s.driver
}

// Subscribe returns a read only channel carrying system events on topic.
func (s *System) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return s.publisher.Subscribe(pid, topic)
}

// Unsubscribe drops the subscriber's channels.
func (s *System) Unsubscribe(pid uuid.UUID) {
	s.publisher.Unsubscribe(pid)
}

// PublishConfig broadcasts the circuit summary on the Config topic.
func (s *System) PublishConfig() {
	s.publisher.Publish(msg.Config, Summary{
		Circuit: s.circuit.Name(),
		Buses:   len(s.circuit.Buses()),
		Lines:   len(s.circuit.Lines()),
		Method:  s.driver.Options().Method,
	})
}

// Solve runs one solve and broadcasts the flattened results on the
// Status topic.
func (s *System) Solve(ctx context.Context) (powerflow.Results, error) {
	results, err := s.driver.Run(ctx, s.circuit)
	if err != nil {
		return powerflow.Results{}, err
	}
	s.publisher.Publish(msg.Status, results.Flatten())
	return results, nil
}

// Process re-solves the circuit on the given interval until stopped.
// Solve failures are logged and the loop continues; device setpoints may
// have changed by the next tick.
func (s *System) Process(ctx context.Context, interval time.Duration) {
	log.Println("[System] Process: Loop Started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			if _, err := s.Solve(ctx); err != nil {
				log.Printf("[System] solve failed: %v\n", err)
			}
		case <-ctx.Done():
			break loop
		case <-s.stop:
			break loop
		}
	}
	s.publisher.Stop()
	log.Println("[System] Process: Loop Stopped")
}

// StopProcess terminates the solve loop during a controlled shutdown.
// Safe to call when the loop already exited on context cancellation.
func (s *System) StopProcess() {
	select {
	case s.stop <- true:
	default:
	}
}
