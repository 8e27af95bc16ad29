package s7

import (
	"fmt"
	"strings"
)

// Model is a Siemens device family.
type Model int

//nolint:revive,stylecheck // family names as printed on the devices
const (
	S7_200 Model = iota + 1
	S7_200_Smart
	S7_300
	S7_400
	S7_1200
	S7_1500
)

var modelNames = map[Model]string{
	S7_200:       "S7_200",
	S7_200_Smart: "S7_200_Smart",
	S7_300:       "S7_300",
	S7_400:       "S7_400",
	S7_1200:      "S7_1200",
	S7_1500:      "S7_1500",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Model(%d)", int(m))
}

// SupportsPPI reports whether the family has a PPI serial port.
func (m Model) SupportsPPI() bool {
	return m == S7_200 || m == S7_200_Smart
}

// ParseModel accepts names like "S7_200", "s7-1200" or "S7-200 Smart".
func ParseModel(s string) (Model, error) {
	key := normalizeName(s)
	for m, name := range modelNames {
		if normalizeName(name) == key {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// TransportKind is the physical link to the device.
type TransportKind int

const (
	Ppi TransportKind = iota + 1
	Mpi
	Tcp
)

func (t TransportKind) String() string {
	switch t {
	case Ppi:
		return "ppi"
	case Mpi:
		return "mpi"
	case Tcp:
		return "tcp"
	default:
		return fmt.Sprintf("TransportKind(%d)", int(t))
	}
}

// ParseTransportKind parses "ppi", "mpi" or "tcp", case-insensitively.
func ParseTransportKind(s string) (TransportKind, error) {
	switch normalizeName(s) {
	case "PPI":
		return Ppi, nil
	case "MPI":
		return Mpi, nil
	case "TCP", "ETHERNET":
		return Tcp, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

func normalizeName(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToUpper(strings.TrimSpace(s)))
}

// Profile holds the handshake constants of a device family.
type Profile struct {
	Model      Model
	TdpuSize   byte
	SrcTsap    uint16
	DstTsap    uint16
	MaxCalling uint16
	MaxCalled  uint16
	MaxPdu     uint16
}

var profiles = map[Model]Profile{
	S7_200:       {TdpuSize: 0x09, SrcTsap: 0x1001, DstTsap: 0x1000, MaxCalling: 1, MaxCalled: 1, MaxPdu: 0x03C0},
	S7_200_Smart: {TdpuSize: 0x0A, SrcTsap: 0x0101, DstTsap: 0x0101, MaxCalling: 1, MaxCalled: 1, MaxPdu: 0x03C0},
	S7_300:       {TdpuSize: 0x0A, SrcTsap: 0x0101, DstTsap: 0x0302, MaxCalling: 1, MaxCalled: 1, MaxPdu: 0x00F0},
	S7_400:       {TdpuSize: 0x0A, SrcTsap: 0x0101, DstTsap: 0x0302, MaxCalling: 1, MaxCalled: 1, MaxPdu: 0x00F0},
	S7_1200:      {TdpuSize: 0x0A, SrcTsap: 0x1011, DstTsap: 0x0301, MaxCalling: 3, MaxCalled: 3, MaxPdu: 0x0100},
	S7_1500:      {TdpuSize: 0x0A, SrcTsap: 0x1011, DstTsap: 0x0301, MaxCalling: 3, MaxCalled: 3, MaxPdu: 0x0100},
}

// ProfileFor returns the handshake profile of m.
func ProfileFor(m Model) (Profile, error) {
	p, ok := profiles[m]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownModel, m)
	}
	p.Model = m

	return p, nil
}

// WithRackSlot returns a copy of p whose destination TSAP addresses the CPU in
// the given rack and slot.
func (p Profile) WithRackSlot(rack, slot int) (Profile, error) {
	if rack < 0 || rack > 7 || slot < 0 || slot > 31 {
		return p, fmt.Errorf("%w: rack %d slot %d", ErrInvalidInput, rack, slot)
	}
	p.DstTsap = p.DstTsap&0xFF00 | uint16(rack<<5|slot)

	return p, nil
}

// CreateReferenceInput returns the connection request parameters of p.
func (p Profile) CreateReferenceInput() CreateReferenceInput {
	return CreateReferenceInput{TdpuSize: p.TdpuSize, SrcTsap: p.SrcTsap, DstTsap: p.DstTsap}
}

// EstablishAssociationInput returns the setup-communication proposal of p.
func (p Profile) EstablishAssociationInput(pduRef uint16) EstablishAssociationInput {
	return EstablishAssociationInput{
		PduRef:     pduRef,
		MaxCalling: p.MaxCalling,
		MaxCalled:  p.MaxCalled,
		MaxPdu:     p.MaxPdu,
	}
}
