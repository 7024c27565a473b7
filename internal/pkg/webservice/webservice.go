package webservice

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
)

// System is the webservice's view of the root node.
type System interface {
	msg.Publisher
	Circuit() *grid.Circuit
	Driver() *powerflow.Driver
}

// Config is the configuration format for the web Service.
type Config struct {
	Address string `json:"Address"`
}

// Service exposes the latest solve results over HTTP and streams new
// results over a websocket.
type Service struct {
	mux      *sync.Mutex
	pid      uuid.UUID
	config   Config
	system   System
	server   *http.Server
	upgrader websocket.Upgrader
}

// New configures and returns a web Service.
func New(configPath string, system System) (*Service, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	config := Config{}
	if err := json.Unmarshal(jsonConfig, &config); err != nil {
		return nil, err
	}
	if config.Address == "" {
		config.Address = ":8080"
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	s := &Service{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: config,
		system: system,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.server = &http.Server{Addr: config.Address, Handler: s.Router()}
	return s, nil
}

// PID is a getter for the service PID.
func (s *Service) PID() uuid.UUID {
	return s.pid
}

// Router assembles the HTTP routes.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", s.baseHandler).Methods("GET")
	router.HandleFunc("/circuit", s.circuitHandler).Methods("GET")
	router.HandleFunc("/results", s.resultsHandler).Methods("GET")
	router.HandleFunc("/results/bus", s.busHandler).Methods("GET")
	router.HandleFunc("/results/branch", s.branchHandler).Methods("GET")
	router.HandleFunc("/results/report", s.reportHandler).Methods("GET")
	router.HandleFunc("/stream", s.streamHandler)
	return router
}

// Process serves HTTP until the listener is shut down.
func (s *Service) Process() {
	log.Printf("[Webservice] Serving on %v\n", s.config.Address)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("[Webservice] serve: %v\n", err)
	}
	log.Println("[Webservice] Process Stopped")
}

// StopProcess shuts the listener down during a controlled shutdown.
func (s *Service) StopProcess() {
	if err := s.server.Shutdown(context.Background()); err != nil {
		log.Printf("[Webservice] shutdown: %v\n", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("[Webservice] malformed JSON:", err)
	}
}

func (s *Service) baseHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "pfc_core"})
}

func (s *Service) circuitHandler(w http.ResponseWriter, r *http.Request) {
	c := s.system.Circuit()
	buses := make([]string, 0)
	for _, b := range c.Buses() {
		buses = append(buses, b.Name())
	}
	lines := make([]string, 0)
	for _, l := range c.Lines() {
		lines = append(lines, l.Name())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"Name":  c.Name(),
		"Sbase": c.Sbase(),
		"Buses": buses,
		"Lines": lines,
	})
}

func (s *Service) latest(w http.ResponseWriter) (powerflow.Results, bool) {
	results, ok := s.system.Driver().Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no solve has completed"})
	}
	return results, ok
}

func (s *Service) resultsHandler(w http.ResponseWriter, r *http.Request) {
	if results, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, results.Flatten())
	}
}

func (s *Service) busHandler(w http.ResponseWriter, r *http.Request) {
	if results, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, results.BusRows())
	}
}

func (s *Service) branchHandler(w http.ResponseWriter, r *http.Request) {
	if results, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, results.BranchRows())
	}
}

func (s *Service) reportHandler(w http.ResponseWriter, r *http.Request) {
	if results, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, results.Report)
	}
}

// streamHandler upgrades the connection and forwards each new solve
// record until the peer goes away.
func (s *Service) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Webservice] upgrade:", err)
		return
	}
	defer conn.Close()

	pid, err := uuid.NewUUID()
	if err != nil {
		return
	}
	ch, err := s.system.Subscribe(pid, msg.Status)
	if err != nil {
		return
	}
	defer s.system.Unsubscribe(pid)

	for m := range ch {
		record, ok := m.Payload().(powerflow.Record)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(record); err != nil {
			return
		}
	}
}
