package mongodb

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Handler archives solve results published by the system. Each Record is
// one document; circuit topology is never written.
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	URI        string `json:"URI"`
	Port       string `json:"Port"`
	Database   string `json:"Database"`
	Collection string `json:"Collection"`
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
	if cfg.Collection == "" {
		cfg.Collection = "powerflow"
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

// Process writes incoming results to the configured collection until
// stopped.
func (h Handler) Process() {
	log.Println("[MongoDB] Process Started")
	client, err := mongo.NewClient(options.Client().ApplyURI(h.config.URI + ":" + h.config.Port))
	if err != nil {
		log.Printf("[MongoDB] client: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Connect(ctx); err != nil {
		cancel()
		log.Printf("[MongoDB] connect: %v\n", err)
		return
	}
	cancel()
	defer client.Disconnect(context.Background())

	collection := client.Database(h.config.Database).Collection(h.config.Collection)

loop:
	for {
		select {
		case m := <-h.inbox:
			record, ok := m.Payload().(powerflow.Record)
			if !ok {
				continue
			}
			if err := insertRecord(collection, m.PID(), record); err != nil {
				log.Printf("[MongoDB] insert: %v\n", err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[MongoDB] Process Stopped")
}

func insertRecord(collection *mongo.Collection, sender uuid.UUID, record powerflow.Record) error {
	doc, err := recordToBSON(sender, record)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = collection.InsertOne(ctx, doc)
	return err
}

// recordToBSON round-trips the record through its JSON form so the
// document shape matches the wire shape used everywhere else.
func recordToBSON(sender uuid.UUID, record powerflow.Record) (bson.M, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	body := bson.M{}
	if err := bson.UnmarshalExtJSON(data, true, &body); err != nil {
		return nil, err
	}
	//TODO: write the sender PID as binary subtype 0x04 rather than a string
	body["sender"] = sender.String()
	return body, nil
}
