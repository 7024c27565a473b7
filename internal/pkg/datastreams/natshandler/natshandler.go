package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"

	nats "github.com/nats-io/nats.go"
)

// Handler republishes solve results to NATS subjects for downstream
// consumers: the full record on <prefix>.results, the convergence report
// on <prefix>.report.
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server        string `json:"Server"`
	SubjectPrefix string `json:"SubjectPrefix"`
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes a Handler to the system publisher.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "pfc"
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}

	inbox := make(chan msg.Msg, 50)

	chStatus, err := system.Subscribe(pid, msg.Status)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chStatus, inbox)

	return Handler{
		mux:    &sync.Mutex{},
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool),
	}, nil
}

// PID is a getter for the handler PID.
func (h Handler) PID() uuid.UUID {
	return h.pid
}

// StopProcess terminates the handler during a controlled shutdown.
func (h *Handler) StopProcess() {
	h.stop <- true
}

// Process forwards incoming results to NATS until stopped.
func (h Handler) Process() {
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		log.Printf("[NATS client] connect: %v\n", err)
		return
	}
	defer nc.Close()

loop:
	for {
		select {
		case m := <-h.inbox:
			record, ok := m.Payload().(powerflow.Record)
			if !ok {
				continue
			}
			if data, err := json.Marshal(record); err == nil {
				if err := nc.Publish(h.config.SubjectPrefix+".results", data); err != nil {
					log.Printf("[NATS client] publish: %v\n", err)
				}
			}
			if data, err := json.Marshal(record.Report); err == nil {
				if err := nc.Publish(h.config.SubjectPrefix+".report", data); err != nil {
					log.Printf("[NATS client] publish: %v\n", err)
				}
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[NATS client] Process Stopped")
}
