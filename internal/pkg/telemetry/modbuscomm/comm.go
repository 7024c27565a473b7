package modbuscomm

// ModbusComm is the interface to a polled Modbus target.
type ModbusComm interface {
	Read([]Register) (map[string]float64, error)
}

// DataType defines the register width and interpretation for decoding.
type DataType string

// Constants of DataType
const (
	U16 DataType = "u16"
	I16 DataType = "i16"
	U32 DataType = "u32"
	I32 DataType = "i32"
	F32 DataType = "f32"
	F64 DataType = "f64"
)

// Endian is the byte order of a register for decoding.
type Endian string

// Constants of Endian
const (
	LittleEndian Endian = "little"
	BigEndian    Endian = "big"
)

// Register contains the data required to read a Modbus holding register.
type Register struct {
	Name       string   `json:"Name"`
	Address    uint16   `json:"Address"`
	DataType   DataType `json:"DataType"`
	Endianness Endian   `json:"Endianness"`
}

// sizeOf returns the register count occupied by a data type.
func sizeOf(dt DataType) uint16 {
	switch dt {
	case U32, I32, F32:
		return 2
	case F64:
		return 4
	default:
		return 1
	}
}
