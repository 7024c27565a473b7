/*
natssolver.go is the production solver backend: it ships a compiled
snapshot to the external power-flow engine over NATS request/reply and
decodes the engine's solution. The engine owns the iteration; this
package owns the wire format and the transport.
*/

package natssolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
)

// Config represents the transport parameters of the remote engine.
type Config struct {
	Server    string `json:"Server"`
	Subject   string `json:"Subject"`
	TimeoutMs int    `json:"TimeoutMs"`
}

// NATSSolver is a powerflow.Solver that delegates to a remote engine.
type NATSSolver struct {
	mux    *sync.Mutex
	pid    uuid.UUID
	config Config
	conn   *nats.Conn
}

// request is the wire form of one solve request.
type request struct {
	Circuit string        `json:"Circuit"`
	Sbase   float64       `json:"Sbase"`
	Buses   []busEntry    `json:"Buses"`
	Lines   []lineEntry   `json:"Lines"`
	Options solverOptions `json:"Options"`
}

type busEntry struct {
	Name string  `json:"Name"`
	Kind string  `json:"Kind"`
	P    float64 `json:"P"` // scheduled power injection [p.u.]
	Q    float64 `json:"Q"`
	Ir   float64 `json:"Ir"` // scheduled current injection at V=1 [p.u.]
	Ii   float64 `json:"Ii"`
	Gsh  float64 `json:"Gsh"` // aggregated shunt admittance [p.u.]
	Bsh  float64 `json:"Bsh"`
	VSet float64 `json:"VSet"`
	VMin float64 `json:"VMin"`
	VMax float64 `json:"VMax"`
}

type lineEntry struct {
	Name string  `json:"Name"`
	From int     `json:"From"`
	To   int     `json:"To"`
	R    float64 `json:"R"`
	X    float64 `json:"X"`
	B    float64 `json:"B"`
	Rate float64 `json:"Rate"`
}

type solverOptions struct {
	Method        string  `json:"Method"`
	Tolerance     float64 `json:"Tolerance"`
	MaxIterations int     `json:"MaxIterations"`
}

// response is the wire form of the engine's reply.
type response struct {
	Voltages   []voltageEntry `json:"Voltages"`
	Method     string         `json:"Method"`
	Converged  bool           `json:"Converged"`
	Error      float64        `json:"Error"`
	Iterations int            `json:"Iterations"`
	ElapsedMs  float64        `json:"ElapsedMs"`
	Fault      string         `json:"Fault"`
}

type voltageEntry struct {
	Re float64 `json:"Re"`
	Im float64 `json:"Im"`
}

// New configures and returns a NATSSolver.
func New(jsonConfig []byte) (*NATSSolver, error) {
	config := Config{}
	if err := json.Unmarshal(jsonConfig, &config); err != nil {
		return nil, err
	}
	if config.Server == "" {
		config.Server = nats.DefaultURL
	}
	if config.Subject == "" {
		config.Subject = "engine.powerflow.solve"
	}
	if config.TimeoutMs == 0 {
		config.TimeoutMs = 5000
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &NATSSolver{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: config,
	}, nil
}

// PID is a getter for the solver PID.
func (s *NATSSolver) PID() uuid.UUID {
	return s.pid
}

// Close releases the NATS connection.
func (s *NATSSolver) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *NATSSolver) connect() (*nats.Conn, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.conn != nil && s.conn.IsConnected() {
		return s.conn, nil
	}
	nc, err := nats.Connect(s.config.Server)
	if err != nil {
		return nil, err
	}
	s.conn = nc
	return nc, nil
}

// Solve marshals the snapshot, performs the request/reply exchange, and
// decodes the solution.
func (s *NATSSolver) Solve(ctx context.Context, snp grid.Snapshot, options powerflow.Options) (powerflow.Solution, error) {
	nc, err := s.connect()
	if err != nil {
		return powerflow.Solution{}, fmt.Errorf("engine connect: %v", err)
	}

	data, err := json.Marshal(encodeRequest(snp, options))
	if err != nil {
		return powerflow.Solution{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.TimeoutMs)*time.Millisecond)
	defer cancel()

	reply, err := nc.RequestWithContext(ctx, s.config.Subject, data)
	if err != nil {
		return powerflow.Solution{}, fmt.Errorf("engine request: %v", err)
	}

	return decodeResponse(reply.Data, snp.NumBuses())
}

func encodeRequest(snp grid.Snapshot, options powerflow.Options) request {
	req := request{
		Circuit: snp.Name,
		Sbase:   snp.Sbase,
		Buses:   make([]busEntry, snp.NumBuses()),
		Lines:   make([]lineEntry, snp.NumLines()),
		Options: solverOptions{
			Method:        options.Method,
			Tolerance:     options.Tolerance,
			MaxIterations: options.MaxIterations,
		},
	}
	for i := range req.Buses {
		req.Buses[i] = busEntry{
			Name: snp.BusNames[i],
			Kind: snp.Kinds[i].String(),
			P:    real(snp.Power[i]),
			Q:    imag(snp.Power[i]),
			Ir:   real(snp.Ibus[i]),
			Ii:   imag(snp.Ibus[i]),
			Gsh:  real(snp.Yshunt[i]),
			Bsh:  imag(snp.Yshunt[i]),
			VSet: snp.VSet[i],
			VMin: snp.VMin[i],
			VMax: snp.VMax[i],
		}
	}
	for k := range req.Lines {
		req.Lines[k] = lineEntry{
			Name: snp.LineNames[k],
			From: snp.From[k],
			To:   snp.To[k],
			R:    real(snp.Z[k]),
			X:    imag(snp.Z[k]),
			B:    snp.Bc[k],
			Rate: snp.Rate[k],
		}
	}
	return req
}

func decodeResponse(data []byte, numBuses int) (powerflow.Solution, error) {
	resp := response{}
	if err := json.Unmarshal(data, &resp); err != nil {
		return powerflow.Solution{}, fmt.Errorf("engine reply: %v", err)
	}
	if resp.Fault != "" {
		return powerflow.Solution{}, fmt.Errorf("engine fault: %v", resp.Fault)
	}
	if len(resp.Voltages) != numBuses {
		return powerflow.Solution{}, fmt.Errorf("engine reply: %d voltages for %d buses", len(resp.Voltages), numBuses)
	}

	voltage := make([]complex128, numBuses)
	for i, v := range resp.Voltages {
		voltage[i] = complex(v.Re, v.Im)
	}

	return powerflow.Solution{
		Voltage: voltage,
		Report: powerflow.Report{
			Method:     resp.Method,
			Converged:  resp.Converged,
			Error:      resp.Error,
			Iterations: resp.Iterations,
			Elapsed:    time.Duration(resp.ElapsedMs * float64(time.Millisecond)),
		},
	}, nil
}
