package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
	"github.com/ohmgrid/pfc_core/internal/pkg/root"
	"gotest.tools/v3/assert"
)

// flatSolver returns every bus at its setpoint voltage.
type flatSolver struct{}

func (flatSolver) Solve(ctx context.Context, snap grid.Snapshot, opts powerflow.Options) (powerflow.Solution, error) {
	voltage := make([]complex128, len(snap.BusPIDs))
	for i := range voltage {
		voltage[i] = complex(snap.VSet[i], 0)
	}
	return powerflow.Solution{
		Voltage: voltage,
		Report: powerflow.Report{
			Method:     opts.Method,
			Converged:  true,
			Error:      1e-9,
			Iterations: 2,
		},
	}, nil
}

func testSystem(t *testing.T) *root.System {
	t.Helper()
	c, err := grid.New([]byte(`{
		"Name": "two bus",
		"Buses": [
			{"Name": "Bus 1", "VNom": 20, "Slack": true, "Active": true},
			{"Name": "Bus 2", "VNom": 20, "Active": true}
		],
		"Generators": [{"Bus": "Bus 1", "Name": "gen 1", "VSet": 1.0, "Active": true}],
		"Loads": [{"Bus": "Bus 2", "Name": "load 2", "P": 40, "Q": 20, "Active": true}],
		"Lines": [{"From": "Bus 1", "To": "Bus 2", "Name": "line 1-2", "R": 0.05, "X": 0.11, "Rate": 50, "Active": true}]
	}`))
	assert.NilError(t, err)

	driver, err := powerflow.NewDriver([]byte(`{}`), flatSolver{})
	assert.NilError(t, err)

	system, err := root.NewSystem(c, &driver)
	assert.NilError(t, err)
	return system
}

func testService(t *testing.T, system System) *Service {
	t.Helper()
	s := &Service{
		mux:    &sync.Mutex{},
		config: Config{Address: ":0"},
		system: system,
	}
	return s
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestCircuitHandler(t *testing.T) {
	system := testSystem(t)
	s := testService(t, system)

	rec := get(t, s, "/circuit")
	assert.Equal(t, rec.Code, http.StatusOK)

	body := map[string]interface{}{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, body["Name"], "two bus")
	assert.Equal(t, body["Sbase"], 100.0)
}

func TestResultsBeforeSolve(t *testing.T) {
	system := testSystem(t)
	s := testService(t, system)

	rec := get(t, s, "/results")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestBusHandler(t *testing.T) {
	system := testSystem(t)
	s := testService(t, system)

	_, err := system.Solve(context.Background())
	assert.NilError(t, err)

	rec := get(t, s, "/results/bus")
	assert.Equal(t, rec.Code, http.StatusOK)

	rows := []powerflow.BusRow{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, len(rows), 2)
	assert.Equal(t, rows[0].Name, "Bus 1")
	assert.Equal(t, rows[0].Vm, 1.0)
}

func TestReportHandler(t *testing.T) {
	system := testSystem(t)
	s := testService(t, system)

	_, err := system.Solve(context.Background())
	assert.NilError(t, err)

	rec := get(t, s, "/results/report")
	assert.Equal(t, rec.Code, http.StatusOK)

	report := powerflow.Report{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, report.Converged, true)
	assert.Equal(t, report.Iterations, 2)
}

func TestStreamHandler(t *testing.T) {
	system := testSystem(t)
	s := testService(t, system)

	server := httptest.NewServer(s.Router())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	defer conn.Close()

	// allow the handler to register its subscription
	time.Sleep(50 * time.Millisecond)

	_, err = system.Solve(context.Background())
	assert.NilError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	record := powerflow.Record{}
	assert.NilError(t, conn.ReadJSON(&record))
	assert.Equal(t, record.Circuit, "two bus")
	assert.Equal(t, len(record.Buses), 2)
}
