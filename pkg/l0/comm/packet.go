package comm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// PacketID defines the type of packet sequence id.
type PacketID uint16

// NewPacketID creates a random packet id.
func NewPacketID() PacketID {
	return PacketID(uint16(time.Now().UnixNano())).Next()
}

// Next calculates the next id. 0 is reserved for unassigned.
func (id PacketID) Next() PacketID {
	n := uint16(id) + 1
	if n == 0 {
		n = 1
	}
	return PacketID(n)
}

// PacketType tags the packet.
type PacketType byte

// Packet types.
const (
	TypeNone       PacketType = 0
	TypeAck        PacketType = 'a'
	TypeNack       PacketType = 'n'
	TypeData       PacketType = 'd'
	TypeIDRequest  PacketType = 'i'
	TypeIDResponse PacketType = 'I'
)

// IsValid checks if it's a known packet type which can be sent.
// TypeNone means no packet and is never valid on the wire.
func (t PacketType) IsValid() bool {
	switch t {
	case TypeAck, TypeNack, TypeData, TypeIDRequest, TypeIDResponse:
		return true
	}
	return false
}

// HasPayload indicates frames of this type carry length, payload and CRC.
func (t PacketType) HasPayload() bool {
	return t == TypeData
}

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeAck:
		return "ACK"
	case TypeNack:
		return "NACK"
	case TypeData:
		return "DATA"
	case TypeIDRequest:
		return "ID_REQUEST"
	case TypeIDResponse:
		return "ID_RESPONSE"
	}
	return fmt.Sprintf("TYPE(%#02x)", byte(t))
}

// StartMarker prefixes every frame.
const StartMarker = "|||"

// MaxPayloadSize is the largest payload the length field can express.
const MaxPayloadSize = math.MaxUint16

// Packet contains the information of a parsed packet.
type Packet struct {
	ID   PacketID
	Type PacketType
	Data []byte
	CRC  uint16
}

// ComputeCRC updates CRC from current type and payload.
func (p *Packet) ComputeCRC() uint16 {
	p.CRC = ComputeCRC(p.Type, p.Data)
	return p.CRC
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	var buf bytes.Buffer
	p.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the encoded frame. The CRC is recomputed for DATA
// and cleared for control packets which carry none.
// Each field is written separately and the first failure aborts the frame.
func (p *Packet) WriteTo(w io.Writer) (n int64, err error) {
	if len(p.Data) > MaxPayloadSize {
		return 0, ErrPayloadTooLarge
	}
	if p.Type.HasPayload() {
		p.ComputeCRC()
	} else {
		p.CRC = 0
	}
	var field [2]byte
	write := func(b []byte) bool {
		var n1 int
		n1, err = w.Write(b)
		n += int64(n1)
		return err == nil
	}
	if !write([]byte(StartMarker)) {
		return
	}
	binary.LittleEndian.PutUint16(field[:], uint16(p.ID))
	if !write(field[:]) || !write([]byte{byte(p.Type)}) {
		return
	}
	if !p.Type.HasPayload() {
		return
	}
	binary.LittleEndian.PutUint16(field[:], uint16(len(p.Data)))
	if !write(field[:]) {
		return
	}
	if len(p.Data) > 0 && !write(p.Data) {
		return
	}
	binary.LittleEndian.PutUint16(field[:], p.CRC)
	write(field[:])
	return
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s#%d[%d]", p.Type, p.ID, len(p.Data))
}
