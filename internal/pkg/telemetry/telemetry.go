/*
telemetry.go maps Modbus registers onto circuit device setpoints, so a
re-solve picks up field measurements instead of the configured static
values.
*/

package telemetry

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/telemetry/modbuscomm"
)

// Mapping binds one register to one device setpoint axis.
type Mapping struct {
	Register modbuscomm.Register `json:"Register"`
	Device   string              `json:"Device"` // load or generator name
	Axis     string              `json:"Axis"`   // "P" or "Q"
	Scale    float64             `json:"Scale"`  // register units per MW/MVAr
}

// Config is the configuration format for the telemetry Service.
type Config struct {
	Poller     modbuscomm.PollerConfig `json:"Poller"`
	PollRateMs int                     `json:"PollRateMs"`
	Mappings   []Mapping               `json:"Mappings"`
}

// Service polls the configured registers and writes the decoded values
// into load and generator setpoints.
type Service struct {
	mux     *sync.Mutex
	pid     uuid.UUID
	comm    modbuscomm.ModbusComm
	circuit *grid.Circuit
	config  Config
	stop    chan bool
}

// New configures a Service with a Modbus TCP poller.
func New(configPath string, circuit *grid.Circuit) (Service, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Service{}, err
	}
	config := Config{}
	if err := json.Unmarshal(jsonConfig, &config); err != nil {
		return Service{}, err
	}
	poller := modbuscomm.NewPoller(config.Poller)
	return NewWithComm(config, circuit, poller)
}

// NewWithComm configures a Service over an existing comm implementation.
func NewWithComm(config Config, circuit *grid.Circuit, comm modbuscomm.ModbusComm) (Service, error) {
	if config.PollRateMs == 0 {
		config.PollRateMs = 1000
	}
	for i := range config.Mappings {
		if config.Mappings[i].Scale == 0 {
			config.Mappings[i].Scale = 1
		}
	}
	if err := validateMappings(config.Mappings, circuit); err != nil {
		return Service{}, err
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Service{}, err
	}

	return Service{
		mux:     &sync.Mutex{},
		pid:     pid,
		comm:    comm,
		circuit: circuit,
		config:  config,
		stop:    make(chan bool),
	}, nil
}

func validateMappings(mappings []Mapping, circuit *grid.Circuit) error {
	for _, m := range mappings {
		if m.Axis != "P" && m.Axis != "Q" {
			return fmt.Errorf("mapping %v: unknown axis %v", m.Register.Name, m.Axis)
		}
		_, isLoad := circuit.LoadByName(m.Device)
		_, isGen := circuit.GeneratorByName(m.Device)
		if !isLoad && !isGen {
			return fmt.Errorf("mapping %v: unknown device %v", m.Register.Name, m.Device)
		}
		if isGen && m.Axis == "Q" {
			return fmt.Errorf("mapping %v: generator %v has no Q setpoint", m.Register.Name, m.Device)
		}
	}
	return nil
}

// PID is a getter for the service PID.
func (s Service) PID() uuid.UUID {
	return s.pid
}

// StopProcess terminates the poll loop during a controlled shutdown.
func (s *Service) StopProcess() {
	s.stop <- true
}

// Process polls the target on the configured rate and applies readings
// until stopped. Comm failures leave the previous setpoints in place.
func (s Service) Process() {
	log.Println("[Telemetry] Process Started")
	poll := time.NewTicker(time.Duration(s.config.PollRateMs) * time.Millisecond)
	defer poll.Stop()
loop:
	for {
		select {
		case <-poll.C:
			if err := s.Poll(); err != nil {
				log.Printf("[Telemetry] %v Comm Error\n", err)
			}
		case <-s.stop:
			break loop
		}
	}
	log.Println("[Telemetry] Process Stopped")
}

// Poll performs one read-and-apply cycle.
func (s Service) Poll() error {
	registers := make([]modbuscomm.Register, len(s.config.Mappings))
	for i, m := range s.config.Mappings {
		registers[i] = m.Register
	}

	values, err := s.comm.Read(registers)
	for _, m := range s.config.Mappings {
		value, ok := values[m.Register.Name]
		if !ok {
			continue
		}
		s.apply(m, value*m.Scale)
	}
	return err
}

func (s Service) apply(m Mapping, value float64) {
	if load, ok := s.circuit.LoadByName(m.Device); ok {
		p, q := load.Power()
		switch m.Axis {
		case "P":
			load.SetPower(value, q)
		case "Q":
			load.SetPower(p, value)
		}
		return
	}
	if gen, ok := s.circuit.GeneratorByName(m.Device); ok {
		gen.SetDispatch(value)
	}
}
