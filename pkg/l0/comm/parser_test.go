package comm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// parseAll feeds bytes and collects results which carry a packet or an error.
func parseAll(p *Parser, in []byte) (results []ParseResult) {
	for _, b := range in {
		if pr := p.Parse(b); pr.Packet != nil || pr.Err != nil {
			results = append(results, pr)
		}
	}
	return
}

func payloadOf(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestParserRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 5, 255, 256, 1024, MaxPayloadSize} {
		t.Run(fmt.Sprintf("len %d", size), func(t *testing.T) {
			in := &Packet{ID: PacketID(size + 1), Type: TypeData, Data: payloadOf(size)}
			frame := in.Bytes()
			var parser Parser
			for i, b := range frame[:len(frame)-1] {
				pr := parser.Parse(b)
				require.Nilf(t, pr.Packet, "byte[%d]", i)
				require.NoErrorf(t, pr.Err, "byte[%d]", i)
				require.True(t, parser.Receiving())
			}
			pr := parser.Parse(frame[len(frame)-1])
			require.NoError(t, pr.Err)
			require.NotNil(t, pr.Packet)
			require.False(t, parser.Receiving())
			require.Equal(t, in.ID, pr.Packet.ID)
			require.Equal(t, in.Type, pr.Packet.Type)
			require.Equal(t, in.CRC, pr.Packet.CRC)
			if size == 0 {
				require.Empty(t, pr.Packet.Data)
			} else {
				require.Equal(t, in.Data, pr.Packet.Data)
			}
		})
	}
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name    string
		in      []byte
		packets []*Packet
		errs    []error
	}{
		{
			name:    "control packets",
			in:      append(frameOf(1, TypeAck), frameOf(2, TypeNack)...),
			packets: []*Packet{{ID: 1, Type: TypeAck}, {ID: 2, Type: TypeNack}},
		},
		{
			name:    "skip garbage",
			in:      append([]byte{'x', '|', 'x', '|', '|', 'y', 0}, frameOf(3, TypeData, 9)...),
			packets: []*Packet{{ID: 3, Type: TypeData, Data: []byte{9}, CRC: ComputeCRC(TypeData, []byte{9})}},
		},
		{
			name:    "unknown type",
			in:      append([]byte{'|', '|', '|', 1, 0, 'z'}, frameOf(4, TypeAck)...),
			packets: []*Packet{{ID: 4, Type: TypeAck}},
			errs:    []error{ErrUnknownType},
		},
		{
			name:    "none type",
			in:      append([]byte{'|', '|', '|', 1, 0, 0}, frameOf(2, TypeAck)...),
			packets: []*Packet{{ID: 2, Type: TypeAck}},
			errs:    []error{ErrUnknownType},
		},
		{
			name: "stray marker byte",
			in:   append([]byte{'|'}, frameOf(7, TypeData, 1, 2, 3)...),
			errs: []error{ErrUnknownType},
		},
		{
			name: "bad checksum",
			in: append(
				[]byte{'|', '|', '|', 5, 0, 'd', 1, 0, 9, 0x00, 0x00},
				frameOf(6, TypeIDResponse)...),
			packets: []*Packet{{ID: 6, Type: TypeIDResponse}},
			errs:    []error{ErrChecksum},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			var packets []*Packet
			var errs []error
			for _, pr := range parseAll(&parser, tc.in) {
				if pr.Packet != nil {
					packets = append(packets, pr.Packet)
				}
				if pr.Err != nil {
					errs = append(errs, pr.Err)
				}
			}
			require.Equal(t, tc.packets, packets)
			require.Len(t, errs, len(tc.errs))
			for i, err := range tc.errs {
				require.Truef(t, errors.Is(errs[i], err), "errs[%d] = %v", i, errs[i])
			}
		})
	}
}

func TestParserChecksumError(t *testing.T) {
	frame := frameOf(5, TypeData, 1, 2, 3)
	frame[len(frame)-1] ^= 0xff
	var parser Parser
	results := parseAll(&parser, frame)
	require.Len(t, results, 1)
	var cerr *ChecksumError
	require.True(t, errors.As(results[0].Err, &cerr))
	require.Equal(t, PacketID(5), cerr.ID)
	require.Equal(t, ComputeCRC(TypeData, []byte{1, 2, 3}), cerr.Expected)
	require.NotEqual(t, cerr.Expected, cerr.Actual)
	require.False(t, parser.Receiving())
}

func TestParserMaxPayload(t *testing.T) {
	parser := Parser{MaxPayload: 4}
	results := parseAll(&parser, frameOf(1, TypeData, 1, 2, 3, 4, 5))
	require.NotEmpty(t, results)
	require.Equal(t, ErrPayloadTooLarge, results[0].Err)

	parser.Reset()
	results = parseAll(&parser, frameOf(2, TypeData, 1, 2, 3, 4))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, []byte{1, 2, 3, 4}, results[0].Packet.Data)
}

func TestParserTimeout(t *testing.T) {
	var parser Parser
	require.Equal(t, ParseResult{}, parser.Timeout())

	frame := frameOf(1, TypeData, 1, 2, 3)
	require.Empty(t, parseAll(&parser, frame[:7]))
	require.True(t, parser.Receiving())
	require.Equal(t, ParseResult{Err: ErrTimeout}, parser.Timeout())
	require.False(t, parser.Receiving())

	results := parseAll(&parser, frame)
	require.Len(t, results, 1)
	require.Equal(t, []byte{1, 2, 3}, results[0].Packet.Data)
}

func TestParserReset(t *testing.T) {
	var parser Parser
	require.Empty(t, parseAll(&parser, []byte{'|', '|', '|', 1}))
	require.True(t, parser.Receiving())
	parser.Reset()
	require.False(t, parser.Receiving())
}
