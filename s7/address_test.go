package s7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateAddress(t *testing.T) {
	tests := []struct {
		in   string
		want AddressDef
	}{
		{"M 10.3", AddressDef{Area: 0x83, Address: 10, SubAddress: 3}},
		{"DB5 100", AddressDef{Area: 5*256 + 0x84, Address: 100}},
		{"  db1 2.7 ", AddressDef{Area: 0x184, Address: 2, SubAddress: 7}},
		{"V 100", AddressDef{Area: 0x184, Address: 100}},
		{"DB 4", AddressDef{Area: 0x84, Address: 4}},
		{"i 0.0", AddressDef{Area: 0x81}},
		{"SM 0", AddressDef{Area: 0x05}},
		{"HC 8", AddressDef{Area: 0x20, Address: 8}},
		{"AQ 2", AddressDef{Area: 0x07, Address: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := TranslateAddress(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateAddress_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"M",
		"X 10",
		"M -1",
		"M ten",
		"M 1.8",
		"M 1.-1",
		"DBX 1",
		"DB70000 1",
		"M 99999999",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := TranslateAddress(in)
			require.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestAddressDef_Accessors(t *testing.T) {
	addr := MustTranslateAddress("DB5 100.2")
	assert.Equal(t, byte(0x84), addr.AreaCode())
	assert.Equal(t, uint16(5), addr.DBBlock())
	assert.Equal(t, 802, addr.BitOffset())

	addr = MustTranslateAddress("M 10.3")
	assert.Equal(t, byte(0x83), addr.AreaCode())
	assert.Equal(t, uint16(0), addr.DBBlock())
	assert.Equal(t, 83, addr.BitOffset())

	assert.Panics(t, func() { MustTranslateAddress("nope") })
}

func TestAddressDef_StringRoundTrip(t *testing.T) {
	for _, in := range []string{"M 10.3", "DB5 100", "DB1 7.1", "I 0", "Q 1.7", "T 3", "C 4", "DB300 12"} {
		addr, err := TranslateAddress(in)
		require.NoError(t, err)
		assert.Equal(t, in, addr.String())

		again, err := TranslateAddress(addr.String())
		require.NoError(t, err)
		assert.Equal(t, addr, again)
	}

	// DB1 and V share an area code; both print as a data block.
	assert.Equal(t, "DB1 0", MustTranslateAddress("DB1 0").String())
	assert.Equal(t, "DB1 7.1", MustTranslateAddress("V 7.1").String())
}
