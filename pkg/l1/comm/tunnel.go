package comm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/basenode.go/pkg/framework"
	l0 "github.com/robotalks/basenode.go/pkg/l0/comm"
)

// Tunnel is an l0.Stream over a PacketReadWriter.
// Frames written are parsed and sent as Envelopes, and received Envelopes
// are re-framed into the read buffer, so a Link works the same way on a
// remote node as on a local serial port.
type Tunnel struct {
	ReadWriter PacketReadWriter

	parser    l0.Parser
	writeLock sync.Mutex

	in     bytes.Buffer
	err    error
	lock   sync.Mutex
	doneCh chan struct{}
}

// NewTunnel creates a Tunnel, Run must be started to receive.
func NewTunnel(rw PacketReadWriter) *Tunnel {
	return &Tunnel{ReadWriter: rw, doneCh: make(chan struct{})}
}

// Available implements l0.Stream.
func (t *Tunnel) Available() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.in.Len()
}

// ReadByte implements io.ByteReader.
func (t *Tunnel) ReadByte() (byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.in.Len() > 0 {
		return t.in.ReadByte()
	}
	if t.err != nil {
		return 0, t.err
	}
	return 0, l0.ErrNoData
}

// Write implements io.Writer.
// Bytes may arrive in any chunks, an Envelope is sent once a frame completes.
func (t *Tunnel) Write(p []byte) (int, error) {
	t.writeLock.Lock()
	defer t.writeLock.Unlock()
	for n, b := range p {
		pr := t.parser.Parse(b)
		if pr.Err != nil {
			return n + 1, pr.Err
		}
		if pr.Packet != nil {
			if err := WriteEnvelope(t.ReadWriter, EnvelopeOf(pr.Packet)); err != nil {
				return n + 1, err
			}
		}
	}
	return len(p), nil
}

// Done is closed when Run stops.
func (t *Tunnel) Done() <-chan struct{} {
	return t.doneCh
}

// Err returns the error which stopped Run.
func (t *Tunnel) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.err
}

// Close implements io.Closer.
func (t *Tunnel) Close() error {
	if closer, ok := t.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run implements Runnable, receiving Envelopes until the
// PacketReadWriter fails or ctx is done.
func (t *Tunnel) Run(ctx context.Context) error {
	defer close(t.doneCh)
	err := fx.RunWithContextCloser(ctx, t, func() error {
		for {
			e, err := ReadEnvelope(t.ReadWriter)
			if errors.Is(err, ErrInvalidEnvelope) {
				glog.Warningf("drop envelope: %v", err)
				continue
			}
			if err != nil {
				return err
			}
			frame := e.Packet().Bytes()
			t.lock.Lock()
			t.in.Write(frame)
			t.lock.Unlock()
		}
	})
	t.lock.Lock()
	if t.err = err; t.err == nil {
		t.err = io.EOF
	}
	t.lock.Unlock()
	return err
}
