package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/ohmgrid/pfc_core/internal/pkg/msg"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"

	_ "github.com/go-sql-driver/mysql"
)

// Handler archives solve summaries to a SQL table: one row per solve
// with the convergence report, the full record serialized as JSON.
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
	Table    string `json:"Table"`
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
	if cfg.Table == "" {
		cfg.Table = "powerflow_results"
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

// Process writes incoming results to the configured table until stopped.
func (h Handler) Process() {
	log.Println("[SQLDB] Process Started")
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		h.config.Username, h.config.Password, h.config.Server, h.config.Port, h.config.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Printf("[SQLDB] open: %v\n", err)
		return
	}
	defer db.Close()

	if err := createTable(db, h.config.Table); err != nil {
		log.Printf("[SQLDB] create table: %v\n", err)
		return
	}

loop:
	for {
		select {
		case m := <-h.inbox:
			record, ok := m.Payload().(powerflow.Record)
			if !ok {
				continue
			}
			if err := insertRecord(db, h.config.Table, record); err != nil {
				log.Printf("[SQLDB] insert: %v\n", err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[SQLDB] Process Stopped")
}

func createTable(db *sql.DB, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INT AUTO_INCREMENT PRIMARY KEY,
		circuit VARCHAR(255) NOT NULL,
		solved_at DATETIME NOT NULL,
		method VARCHAR(32) NOT NULL,
		converged BOOL NOT NULL,
		error DOUBLE NOT NULL,
		iterations INT NOT NULL,
		record JSON NOT NULL
	)`, table)
	_, err := db.Exec(stmt)
	return err
}

func insertRecord(db *sql.DB, table string, record powerflow.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s
		(circuit, solved_at, method, converged, error, iterations, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	_, err = db.Exec(stmt,
		record.Circuit,
		record.Timestamp,
		record.Report.Method,
		record.Report.Converged,
		record.Report.Error,
		record.Report.Iterations,
		body,
	)
	return err
}
