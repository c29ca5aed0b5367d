package comm

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// ReadEnvelope reads one packet and decodes it as Envelope.
func ReadEnvelope(r PacketReader) (*Envelope, error) {
	pkt, err := r.ReadPacket()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(pkt)
}

// WriteEnvelope encodes the Envelope and writes it as one packet.
func WriteEnvelope(w PacketWriter, e *Envelope) error {
	return w.WritePacket(e.Encode())
}
