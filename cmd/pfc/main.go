package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohmgrid/pfc_core/internal/lib/solver/natssolver"
	"github.com/ohmgrid/pfc_core/internal/lib/solver/virtualsolver"
	"github.com/ohmgrid/pfc_core/internal/pkg/database/mongodb"
	"github.com/ohmgrid/pfc_core/internal/pkg/database/sqldb"
	"github.com/ohmgrid/pfc_core/internal/pkg/datastreams/mqtt"
	"github.com/ohmgrid/pfc_core/internal/pkg/datastreams/natshandler"
	"github.com/ohmgrid/pfc_core/internal/pkg/grid"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
	"github.com/ohmgrid/pfc_core/internal/pkg/root"
	"github.com/ohmgrid/pfc_core/internal/pkg/telemetry"
	"github.com/ohmgrid/pfc_core/internal/pkg/webservice"
)

type appConfig struct {
	Circuit         string `json:"Circuit"`
	Solver          string `json:"Solver"` // "virtual" or "nats"
	SolveIntervalMs int    `json:"SolveIntervalMs"`
	EnableMongoDB   bool   `json:"EnableMongoDB"`
	EnableSQLDB     bool   `json:"EnableSQLDB"`
	EnableNATS      bool   `json:"EnableNATS"`
	EnableMQTT      bool   `json:"EnableMQTT"`
	EnableTelemetry bool   `json:"EnableTelemetry"`
	EnableWeb       bool   `json:"EnableWeb"`
}

func main() {
	log.Println("[Main] Starting PFC_Core v0.1.0")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	config, err := readAppConfig("./config/pfc.json")
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Building Circuit")
	circuit, err := buildCircuit(config.Circuit)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Building Solve Driver")
	driver, err := buildDriver(config.Solver)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Assembling System")
	system, err := root.NewSystem(circuit, driver)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Linking Handlers")
	stoppers, err := linkHandlers(config, system)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Propagate Configuration")
	system.PublishConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := system.Solve(ctx)
	if err != nil {
		panic(err)
	}
	powerflow.BusTable(os.Stdout, results)
	fmt.Fprintln(os.Stdout)
	powerflow.BranchTable(os.Stdout, results)
	fmt.Fprintln(os.Stdout)
	powerflow.ReportTable(os.Stdout, results)

	log.Println("[Main] Starting solve loop")
	interval := time.Duration(config.SolveIntervalMs) * time.Millisecond
	go system.Process(ctx, interval)

	<-sigs
	log.Println("[Main] Stopping system")
	system.StopProcess()
	for _, stop := range stoppers {
		stop()
	}
	time.Sleep(1 * time.Second)
}

func readAppConfig(path string) (appConfig, error) {
	config := appConfig{
		Circuit:         "./config/grid/fivebus.json",
		Solver:          "virtual",
		SolveIntervalMs: 5000,
	}
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(jsonConfig, &config)
	return config, err
}

func buildCircuit(path string) (*grid.Circuit, error) {
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return grid.New(jsonConfig)
}

func buildDriver(backend string) (*powerflow.Driver, error) {
	solver, err := buildSolver(backend)
	if err != nil {
		return nil, err
	}

	jsonConfig, err := ioutil.ReadFile("./config/solver/driver.json")
	if err != nil {
		return nil, err
	}
	driver, err := powerflow.NewDriver(jsonConfig, solver)
	return &driver, err
}

func buildSolver(backend string) (powerflow.Solver, error) {
	switch backend {
	case "virtual":
		jsonConfig, err := ioutil.ReadFile("./config/solver/virtualsolver.json")
		if err != nil {
			return nil, err
		}
		return virtualsolver.New(jsonConfig)
	case "nats":
		jsonConfig, err := ioutil.ReadFile("./config/solver/natssolver.json")
		if err != nil {
			return nil, err
		}
		return natssolver.New(jsonConfig)
	}
	return nil, fmt.Errorf("unknown solver backend %v", backend)
}

func linkHandlers(config appConfig, system *root.System) ([]func(), error) {
	stoppers := make([]func(), 0)

	if config.EnableMongoDB {
		handler, err := mongodb.New("./config/database/mongodb.json", system)
		if err != nil {
			return stoppers, err
		}
		go handler.Process()
		stoppers = append(stoppers, handler.StopProcess)
	}

	if config.EnableSQLDB {
		handler, err := sqldb.New("./config/database/sqldb.json", system)
		if err != nil {
			return stoppers, err
		}
		go handler.Process()
		stoppers = append(stoppers, handler.StopProcess)
	}

	if config.EnableNATS {
		handler, err := natshandler.New("./config/datastreams/nats.json", system)
		if err != nil {
			return stoppers, err
		}
		go handler.Process()
		stoppers = append(stoppers, handler.StopProcess)
	}

	if config.EnableMQTT {
		handler, err := mqtt.New("./config/datastreams/mqtt.json", system)
		if err != nil {
			return stoppers, err
		}
		go handler.Process()
		stoppers = append(stoppers, handler.StopProcess)
	}

	if config.EnableTelemetry {
		service, err := telemetry.New("./config/telemetry/modbus.json", system.Circuit())
		if err != nil {
			return stoppers, err
		}
		go service.Process()
		stoppers = append(stoppers, service.StopProcess)
	}

	if config.EnableWeb {
		service, err := webservice.New("./config/webservice/webservice.json", system)
		if err != nil {
			return stoppers, err
		}
		go service.Process()
		stoppers = append(stoppers, service.StopProcess)
	}

	return stoppers, nil
}
