package comm

import (
	"github.com/sigurn/crc16"
)

// Parser reassembles frames from bytes received.
type Parser struct {
	// MaxPayload limits accepted payload length, 0 means MaxPayloadSize.
	MaxPayload int

	state   parseState
	packet  *Packet
	field   uint16
	recvLen int
	crc     uint16
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	Packet *Packet
	Err    error
}

type parseState int

const (
	stateMarker0 parseState = iota // hunting for start marker
	stateMarker1
	stateMarker2
	stateIDLo
	stateIDHi
	stateType
	stateLenLo
	stateLenHi
	stateData
	stateCRCLo
	stateCRCHi
)

// Receiving indicates the parser is in the middle of a frame.
func (p *Parser) Receiving() bool {
	return p.state > stateMarker0
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.packet = stateMarker0, nil
}

// Timeout notifies the parser the peer stopped in the middle of a frame.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.Receiving() {
		p.Reset()
		pr.Err = ErrTimeout
	}
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateMarker0, stateMarker1, stateMarker2:
		if b == StartMarker[p.state] {
			p.state++
		} else if b == StartMarker[0] {
			p.state = stateMarker1
		} else {
			p.state = stateMarker0
		}
	case stateIDLo:
		p.packet = &Packet{ID: PacketID(b)}
		p.state = stateIDHi
	case stateIDHi:
		p.packet.ID |= PacketID(b) << 8
		p.state = stateType
	case stateType:
		typ := PacketType(b)
		if !typ.IsValid() {
			return p.fail(ErrUnknownType)
		}
		p.packet.Type = typ
		if !typ.HasPayload() {
			return p.packetReady()
		}
		p.state = stateLenLo
	case stateLenLo:
		p.field = uint16(b)
		p.state = stateLenHi
	case stateLenHi:
		p.field |= uint16(b) << 8
		size := int(p.field)
		if limit := p.MaxPayload; limit > 0 && size > limit {
			return p.fail(ErrPayloadTooLarge)
		}
		p.crc = crcHeader(crc16.Init(crcTable), p.packet.Type, p.field)
		if size == 0 {
			p.state = stateCRCLo
			return
		}
		p.packet.Data, p.recvLen = make([]byte, size), 0
		p.state = stateData
	case stateData:
		p.packet.Data[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= len(p.packet.Data) {
			p.crc = crc16.Update(p.crc, p.packet.Data, crcTable)
			p.state = stateCRCLo
		}
	case stateCRCLo:
		p.field = uint16(b)
		p.state = stateCRCHi
	case stateCRCHi:
		p.packet.CRC = p.field | uint16(b)<<8
		if crc := crc16.Complete(p.crc, crcTable); crc != p.packet.CRC {
			return p.fail(&ChecksumError{ID: p.packet.ID, Expected: crc, Actual: p.packet.CRC})
		}
		return p.packetReady()
	}
	return
}

func (p *Parser) fail(err error) ParseResult {
	p.Reset()
	return ParseResult{Err: err}
}

func (p *Parser) packetReady() (pr ParseResult) {
	p.state = stateMarker0
	pr.Packet, p.packet = p.packet, nil
	return
}
