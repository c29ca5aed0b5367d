package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/basenode.go/pkg/l0/comm"
)

func TestParseType(t *testing.T) {
	testCases := []struct {
		str string
		typ comm.PacketType
	}{
		{"data", comm.TypeData},
		{"ACK", comm.TypeAck},
		{"nack", comm.TypeNack},
		{"idreq", comm.TypeIDRequest},
		{"I", comm.TypeIDResponse},
		{"d", comm.TypeData},
	}
	for _, tc := range testCases {
		typ, err := ParseType(tc.str)
		require.NoError(t, err, tc.str)
		require.Equal(t, tc.typ, typ, tc.str)
	}
	for _, str := range []string{"x", "", "datum", "none", "\x00"} {
		_, err := ParseType(str)
		require.Error(t, err, str)
	}
}

func TestParseHex(t *testing.T) {
	data, err := ParseHex([]string{"0102", "0xff", "a"})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 0xff, 0x0a}, data)

	data, err = ParseHex(nil)
	require.NoError(t, err)
	require.Empty(t, data)

	_, err = ParseHex([]string{"zz"})
	require.Error(t, err)
}
