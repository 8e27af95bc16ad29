package s7

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when an address string cannot be translated.
var ErrInvalidAddress = errors.New("s7: invalid address")

// AreaDB is the area code of data blocks. A DB address carries its block number
// in the upper bits of AddressDef.Area.
const AreaDB = 0x84

const (
	maxByteOffset = 0x1FFFFF // (offset*8 + 7) must fit in 3 bytes
	maxDBNumber   = 0xFFFF
)

// areaCodes maps area tokens to area codes. V memory of the S7-200 is DB1.
var areaCodes = map[string]int{
	"S":  0x04,
	"SM": 0x05,
	"AI": 0x06,
	"AQ": 0x07,
	"C":  0x1E,
	"T":  0x1F,
	"HC": 0x20,
	"I":  0x81,
	"Q":  0x82,
	"M":  0x83,
	"DB": AreaDB,
	"V":  0x184,
}

var areaNames = func() map[int]string {
	names := make(map[int]string, len(areaCodes))
	for name, code := range areaCodes {
		names[code] = name
	}

	return names
}()

// AddressDef is a translated Siemens address.
//
// Area holds the area code in its low byte and, for data blocks, the DB number
// in the bits above (Area = db*256 + 0x84). Address is the byte offset and
// SubAddress the bit within that byte.
type AddressDef struct {
	Area       int
	Address    int
	SubAddress int
}

// AreaCode returns the area code sent on the wire.
func (a AddressDef) AreaCode() byte { return byte(a.Area % 256) }

// DBBlock returns the data block number; it is zero for non-DB areas.
func (a AddressDef) DBBlock() uint16 { return uint16(a.Area / 256) }

// BitOffset returns the bit address used by read and write requests.
func (a AddressDef) BitOffset() int { return a.Address*8 + a.SubAddress }

// String renders the address in the syntax accepted by TranslateAddress.
func (a AddressDef) String() string {
	// data blocks are always named DB<n>, so V addresses print as DB1
	name, ok := areaNames[a.Area]
	switch {
	case a.Area%256 == AreaDB:
		name = "DB" + strconv.Itoa(a.Area/256)
	case !ok:
		name = fmt.Sprintf("0x%X", a.Area)
	}

	if a.SubAddress != 0 {
		return fmt.Sprintf("%s %d.%d", name, a.Address, a.SubAddress)
	}

	return fmt.Sprintf("%s %d", name, a.Address)
}

// TranslateAddress parses "<AREA> <offset>[.<bit>]", e.g. "M 10.3" or "DB5 100".
// Matching is case-insensitive. An area token "DB<n>" selects data block n.
func TranslateAddress(s string) (AddressDef, error) {
	str := strings.ToUpper(strings.TrimSpace(s))

	areaToken, rest, ok := strings.Cut(str, " ")
	if !ok {
		return AddressDef{}, fmt.Errorf("%w: %q has no offset", ErrInvalidAddress, s)
	}

	area, err := translateArea(areaToken)
	if err != nil {
		return AddressDef{}, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}

	offsetStr, bitStr, hasBit := strings.Cut(strings.TrimSpace(rest), ".")

	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 || offset > maxByteOffset {
		return AddressDef{}, fmt.Errorf("%w: %q: bad byte offset %q", ErrInvalidAddress, s, offsetStr)
	}

	sub := 0
	if hasBit {
		sub, err = strconv.Atoi(bitStr)
		if err != nil || sub < 0 || sub > 7 {
			return AddressDef{}, fmt.Errorf("%w: %q: bad bit offset %q", ErrInvalidAddress, s, bitStr)
		}
	}

	return AddressDef{Area: area, Address: offset, SubAddress: sub}, nil
}

// MustTranslateAddress is like TranslateAddress but panics on error.
func MustTranslateAddress(s string) AddressDef {
	def, err := TranslateAddress(s)
	if err != nil {
		panic(err)
	}

	return def
}

func translateArea(token string) (int, error) {
	if code, ok := areaCodes[token]; ok {
		return code, nil
	}

	digits, ok := strings.CutPrefix(token, "DB")
	if !ok || digits == "" {
		return 0, fmt.Errorf("unknown area %q", token)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unknown area %q", token)
		}
	}

	db, err := strconv.Atoi(digits)
	if err != nil || db > maxDBNumber {
		return 0, fmt.Errorf("data block number %q out of range", digits)
	}

	return db*256 + AreaDB, nil
}
