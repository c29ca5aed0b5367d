package comm

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	l0 "github.com/robotalks/basenode.go/pkg/l0/comm"
)

// Envelope carries one packet over a network transport.
// It is encoded in protobuf wire format:
//
//	message Envelope {
//	  uint32 id   = 1;
//	  uint32 type = 2;
//	  bytes  data = 3;
//	}
type Envelope struct {
	ID   l0.PacketID
	Type l0.PacketType
	Data []byte
}

// Envelope field numbers.
const (
	fieldID   = 1
	fieldType = 2
	fieldData = 3
)

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// ErrInvalidEnvelope indicates the envelope can't be decoded.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// EnvelopeOf wraps a packet.
func EnvelopeOf(pkt *l0.Packet) *Envelope {
	return &Envelope{ID: pkt.ID, Type: pkt.Type, Data: pkt.Data}
}

// Packet unwraps the envelope.
func (e *Envelope) Packet() *l0.Packet {
	return &l0.Packet{ID: e.ID, Type: e.Type, Data: e.Data}
}

// String implements fmt.Stringer.
func (e *Envelope) String() string {
	return e.Packet().String()
}

// Encode encodes the envelope, zero fields are omitted.
func (e *Envelope) Encode() []byte {
	b := proto.NewBuffer(make([]byte, 0, len(e.Data)+10))
	if e.ID != 0 {
		b.EncodeVarint(fieldID<<3 | wireVarint)
		b.EncodeVarint(uint64(e.ID))
	}
	if e.Type != l0.TypeNone {
		b.EncodeVarint(fieldType<<3 | wireVarint)
		b.EncodeVarint(uint64(e.Type))
	}
	if len(e.Data) > 0 {
		b.EncodeVarint(fieldData<<3 | wireBytes)
		b.EncodeRawBytes(e.Data)
	}
	return b.Bytes()
}

// DecodeEnvelope decodes an envelope, unknown fields are skipped.
func DecodeEnvelope(buf []byte) (*Envelope, error) {
	e := &Envelope{}
	for len(buf) > 0 {
		key, n := proto.DecodeVarint(buf)
		if n == 0 {
			return nil, ErrInvalidEnvelope
		}
		buf = buf[n:]
		field, wire := key>>3, key&7
		var val uint64
		var data []byte
		switch wire {
		case wireVarint:
			if val, n = proto.DecodeVarint(buf); n == 0 {
				return nil, ErrInvalidEnvelope
			}
		case wireFixed64:
			n = 8
		case wireFixed32:
			n = 4
		case wireBytes:
			size, sn := proto.DecodeVarint(buf)
			if sn == 0 || size > uint64(len(buf)-sn) {
				return nil, ErrInvalidEnvelope
			}
			data, n = buf[sn:sn+int(size)], sn+int(size)
		default:
			return nil, fmt.Errorf("%w: wire type %d", ErrInvalidEnvelope, wire)
		}
		if n > len(buf) {
			return nil, ErrInvalidEnvelope
		}
		buf = buf[n:]
		switch {
		case field == fieldID && wire == wireVarint:
			if val > 0xffff {
				return nil, fmt.Errorf("%w: id %d", ErrInvalidEnvelope, val)
			}
			e.ID = l0.PacketID(val)
		case field == fieldType && wire == wireVarint:
			if val > 0xff || !l0.PacketType(val).IsValid() {
				return nil, fmt.Errorf("%w: type %d", ErrInvalidEnvelope, val)
			}
			e.Type = l0.PacketType(val)
		case field == fieldData && wire == wireBytes:
			e.Data = append([]byte(nil), data...)
		}
	}
	if len(e.Data) > 0 && !e.Type.HasPayload() {
		return nil, fmt.Errorf("%w: unexpected data for %s", ErrInvalidEnvelope, e.Type)
	}
	return e, nil
}
