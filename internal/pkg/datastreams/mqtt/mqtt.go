package mqtt

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Handler publishes per-bus voltage readings to MQTT topics
// (<prefix>/bus/<name>) for SCADA-style consumers.
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Broker      string `json:"Broker"`
	ClientID    string `json:"ClientID"`
	TopicPrefix string `json:"TopicPrefix"`
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
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "pfc"
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pfc-" + pid.String()
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

// Process forwards per-bus readings to the broker until stopped.
func (h Handler) Process() {
	log.Println("[MQTT client] Process Started")
	opts := paho.NewClientOptions().AddBroker(h.config.Broker).SetClientID(h.config.ClientID)
	client := paho.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		log.Printf("[MQTT client] connect: %v\n", token.Error())
		return
	}
	defer client.Disconnect(250)

loop:
	for {
		select {
		case m := <-h.inbox:
			record, ok := m.Payload().(powerflow.Record)
			if !ok {
				continue
			}
			for _, bus := range record.Buses {
				data, err := json.Marshal(bus)
				if err != nil {
					continue
				}
				topic := fmt.Sprintf("%s/bus/%s", h.config.TopicPrefix, bus.Name)
				if token := client.Publish(topic, 0, false, data); token.Error() != nil {
					log.Printf("[MQTT client] publish: %v\n", token.Error())
				}
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[MQTT client] Process Stopped")
}
