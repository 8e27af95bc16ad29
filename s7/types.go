package s7

import "fmt"

// DataType is the transport size of a request item.
type DataType byte

const (
	Bit     DataType = 0x01
	Byte    DataType = 0x02
	Char    DataType = 0x03
	Word    DataType = 0x04
	Int     DataType = 0x05
	DWord   DataType = 0x06
	DInt    DataType = 0x07
	Real    DataType = 0x08
	Counter DataType = 0x1C
	Timer   DataType = 0x1D
)

// Bool is an alias of Bit.
const Bool = Bit

var dataTypeNames = map[DataType]string{
	Bit:     "Bit",
	Byte:    "Byte",
	Char:    "Char",
	Word:    "Word",
	Int:     "Int",
	DWord:   "DWord",
	DInt:    "DInt",
	Real:    "Real",
	Counter: "Counter",
	Timer:   "Timer",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("DataType(0x%02X)", byte(t))
}

// TransportSize is the data transport size of a response item. It decides how
// the item length field is interpreted.
type TransportSize byte

const (
	TransportNull  TransportSize = 0x00
	TransportBit   TransportSize = 0x03
	TransportByte  TransportSize = 0x04
	TransportInt   TransportSize = 0x05
	TransportReal  TransportSize = 0x07
	TransportOctet TransportSize = 0x09
)

// ByteLength converts the item length field to a byte count.
func (t TransportSize) ByteLength(length uint16) int {
	switch t {
	case TransportBit:
		return (int(length) + 7) / 8
	case TransportReal, TransportOctet:
		return int(length)
	default:
		return int(length) / 8
	}
}

// AccessResult is the per-item return code of read and write responses.
type AccessResult byte

const (
	HardwareFault            AccessResult = 0x01
	IllegalObjectAccess      AccessResult = 0x03
	InvalidAddress           AccessResult = 0x05
	DataTypeNotSupport       AccessResult = 0x06
	DataTypeInconsistent     AccessResult = 0x07
	ObjNotExistOrLengthError AccessResult = 0x0A
	NoError                  AccessResult = 0xFF
)

var accessResultNames = map[AccessResult]string{
	HardwareFault:            "hardware fault",
	IllegalObjectAccess:      "illegal object access",
	InvalidAddress:           "invalid address",
	DataTypeNotSupport:       "data type not supported",
	DataTypeInconsistent:     "data type inconsistent",
	ObjNotExistOrLengthError: "object does not exist or length error",
	NoError:                  "no error",
}

func (r AccessResult) String() string {
	if name, ok := accessResultNames[r]; ok {
		return name
	}

	return fmt.Sprintf("unknown access result 0x%02X", byte(r))
}

// S7comm header values.
const (
	ProtocolID byte = 0x32

	RosctrJob      byte = 0x01
	RosctrAck      byte = 0x02
	RosctrAckData  byte = 0x03
	RosctrUserData byte = 0x07

	ServiceReadVar   byte = 0x04
	ServiceWriteVar  byte = 0x05
	ServiceSetupComm byte = 0xF0
)

// COTP PDU types found at byte 5 of a TPKT frame.
const (
	COTPConnectRequest byte = 0xE0
	COTPConnectConfirm byte = 0xD0
	COTPData           byte = 0xF0
)

// PlaceholderLen is the number of leading bytes of an Ethernet unit that the
// framing replaces with its own header.
const PlaceholderLen = 7
