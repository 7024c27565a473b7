package modbuscomm

import (
	"encoding/binary"
	"log"
	"math"
	"os"
	"time"

	"github.com/goburrow/modbus"
)

// Poller reads holding registers from a Modbus TCP target.
type Poller struct {
	handler *modbus.TCPClientHandler
}

// PollerConfig is the configuration format for Poller.
type PollerConfig struct {
	IPAddr       string `json:"IPAddr"`
	Port         string `json:"Port"`
	SlaveID      byte   `json:"SlaveID"`
	Timeout      int    `json:"Timeout"` // [ms]
	EnableLogger bool   `json:"EnableLogger"`
}

// NewPoller is a factory for the Poller struct.
func NewPoller(cfg PollerConfig) Poller {
	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID

	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	return Poller{handler: handler}
}

// Read polls each register and returns the decoded values by name. A
// failed register read reports the error but does not abort the
// remaining reads.
func (m Poller) Read(registers []Register) (map[string]float64, error) {
	err := m.handler.Connect()
	if err != nil {
		return nil, err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	readValues := make(map[string]float64)
	for _, register := range registers {
		resp, readErr := client.ReadHoldingRegisters(register.Address, sizeOf(register.DataType))
		if readErr != nil {
			err = readErr
			continue
		}
		readValues[register.Name] = decode(resp, register)
	}
	return readValues, err
}

// decode converts a register byte array into a float64.
func decode(bytes []byte, register Register) float64 {
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case U16:
		return float64(endian.Uint16(bytes))
	case I16:
		return float64(int16(endian.Uint16(bytes)))
	case U32:
		return float64(endian.Uint32(bytes))
	case I32:
		return float64(int32(endian.Uint32(bytes)))
	case F32:
		return float64(math.Float32frombits(endian.Uint32(bytes)))
	case F64:
		return math.Float64frombits(endian.Uint64(bytes))
	}
	return 0
}

func getByteOrder(e Endian) binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
