package comm

import (
	"io"
	"sync"
)

// Writer frames payloads onto a stream.
//
// A single frame object is reused for every write, so Writer serializes
// callers. The stream is written field by field without buffering, a failed
// write is returned as-is and never retried.
type Writer struct {
	w     io.Writer
	id    PacketID
	frame Packet
	lock  sync.Mutex
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, id: NewPacketID()}
}

// WriteFrame frames data with the given id and type.
// The payload is referenced, not copied, while the frame is written.
func (w *Writer) WriteFrame(id PacketID, typ PacketType, data []byte) error {
	if len(data) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	w.frame.ID, w.frame.Type, w.frame.Data = id, typ, data
	_, err := w.frame.WriteTo(w.w)
	w.frame.Data = nil
	return err
}

// WritePacket writes pkt and stores the computed CRC back into pkt.
func (w *Writer) WritePacket(pkt *Packet) error {
	if len(pkt.Data) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	_, err := pkt.WriteTo(w.w)
	return err
}

// NextID allocates the next packet id.
func (w *Writer) NextID() PacketID {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.id = w.id.Next()
	return w.id
}

// Write implements io.Writer by sending p as one DATA frame.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.WriteFrame(w.NextID(), TypeData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
