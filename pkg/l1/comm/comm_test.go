package comm

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/basenode.go/pkg/framework"
	l0 "github.com/robotalks/basenode.go/pkg/l0/comm"
)

type chanReadWriter struct {
	in      <-chan []byte
	out     chan<- []byte
	closeCh chan struct{}
	once    *sync.Once
}

func newChanPipe() (*chanReadWriter, *chanReadWriter) {
	ch1, ch2 := make(chan []byte, 16), make(chan []byte, 16)
	closeCh, once := make(chan struct{}), &sync.Once{}
	return &chanReadWriter{in: ch1, out: ch2, closeCh: closeCh, once: once},
		&chanReadWriter{in: ch2, out: ch1, closeCh: closeCh, once: once}
}

func (p *chanReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.in:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

func (p *chanReadWriter) WritePacket(pkt []byte) error {
	select {
	case p.out <- pkt:
		return nil
	case <-p.closeCh:
		return io.ErrClosedPipe
	}
}

func (p *chanReadWriter) Close() error {
	p.once.Do(func() { close(p.closeCh) })
	return nil
}

func (p *chanReadWriter) readEnvelope(t *testing.T) *Envelope {
	select {
	case pkt := <-p.in:
		e, err := DecodeEnvelope(pkt)
		require.NoError(t, err)
		return e
	case <-time.After(time.Second):
		t.Fatal("envelope expected")
	}
	return nil
}

func frameOf(id l0.PacketID, typ l0.PacketType, data ...byte) []byte {
	if len(data) == 0 {
		data = nil
	}
	return (&l0.Packet{ID: id, Type: typ, Data: data}).Bytes()
}

func TestEnvelope(t *testing.T) {
	testCases := []struct {
		name    string
		e       Envelope
		encoded []byte
	}{
		{"data", Envelope{ID: 7, Type: l0.TypeData, Data: []byte{1, 2}}, []byte{0x08, 0x07, 0x10, 0x64, 0x1a, 0x02, 0x01, 0x02}},
		{"large id", Envelope{ID: 300, Type: l0.TypeAck}, []byte{0x08, 0xac, 0x02, 0x10, 0x61}},
		{"empty data", Envelope{ID: 1, Type: l0.TypeData}, []byte{0x08, 0x01, 0x10, 0x64}},
		{"none", Envelope{}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.e.Encode()
			require.Equal(t, len(tc.encoded), len(encoded))
			if len(tc.encoded) > 0 {
				require.Equal(t, tc.encoded, encoded)
			}
			e, err := DecodeEnvelope(encoded)
			require.NoError(t, err)
			require.Equal(t, tc.e, *e)
		})
	}
}

func TestDecodeEnvelopeUnknownFields(t *testing.T) {
	e, err := DecodeEnvelope([]byte{
		0x08, 0x02,
		0x20, 0x05, // field 4 varint
		0x2a, 0x01, 0xff, // field 5 bytes
		0x35, 1, 2, 3, 4, // field 6 fixed32
		0x39, 1, 2, 3, 4, 5, 6, 7, 8, // field 7 fixed64
		0x10, 0x6e,
	})
	require.NoError(t, err)
	require.Equal(t, &Envelope{ID: 2, Type: l0.TypeNack}, e)
}

func TestDecodeEnvelopeInvalid(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
	}{
		{"truncated varint", []byte{0x08}},
		{"truncated bytes", []byte{0x1a, 0x05, 0x01}},
		{"truncated fixed32", []byte{0x35, 1, 2}},
		{"bad wire type", []byte{0x0b}},
		{"id overflow", []byte{0x08, 0x80, 0x80, 0x04}},
		{"unknown type", []byte{0x10, 0x78}},
		{"none type", []byte{0x08, 0x01, 0x10, 0x00}},
		{"data on ack", []byte{0x10, 0x61, 0x1a, 0x01, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tc.buf)
			require.ErrorIs(t, err, ErrInvalidEnvelope)
		})
	}
}

func TestBridge(t *testing.T) {
	var device l0.BufferStream
	link := l0.NewLink(&device)
	local, remote := newChanPipe()
	bridge := NewBridge(link, local)

	ctx, cancel := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() {
		errCh <- bridge.Run(ctx)
	}()

	device.Inject(frameOf(5, l0.TypeData, 1, 2)...)
	require.NoError(t, link.Poll(context.TODO()))
	require.Equal(t, &Envelope{ID: 5, Type: l0.TypeData, Data: []byte{1, 2}}, remote.readEnvelope(t))

	require.NoError(t, WriteEnvelope(remote, &Envelope{ID: 9, Type: l0.TypeIDRequest}))
	require.NoError(t, remote.WritePacket([]byte{0x0b}))
	require.NoError(t, WriteEnvelope(remote, &Envelope{ID: 10, Type: l0.TypeData, Data: []byte{3}}))
	expected := append(frameOf(9, l0.TypeIDRequest), frameOf(10, l0.TypeData, 3)...)
	var output []byte
	require.Eventually(t, func() bool {
		output = append(output, device.Output()...)
		return len(output) >= len(expected)
	}, time.Second, time.Millisecond)
	require.Equal(t, expected, output)

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestTunnel(t *testing.T) {
	local, remote := newChanPipe()
	tunnel := NewTunnel(local)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go tunnel.Run(ctx)

	n, err := tunnel.Write(frameOf(3, l0.TypeData, 4, 5)[:5])
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Empty(t, remote.in)
	_, err = tunnel.Write(frameOf(3, l0.TypeData, 4, 5)[5:])
	require.NoError(t, err)
	require.Equal(t, &Envelope{ID: 3, Type: l0.TypeData, Data: []byte{4, 5}}, remote.readEnvelope(t))

	require.NoError(t, WriteEnvelope(remote, &Envelope{ID: 3, Type: l0.TypeAck}))
	expected := frameOf(3, l0.TypeAck)
	require.Eventually(t, func() bool { return tunnel.Available() == len(expected) }, time.Second, time.Millisecond)
	for _, b := range expected {
		v, err := tunnel.ReadByte()
		require.NoError(t, err)
		require.Equal(t, b, v)
	}
	_, err = tunnel.ReadByte()
	require.Equal(t, l0.ErrNoData, err)

	remote.Close()
	select {
	case <-tunnel.Done():
	case <-time.After(time.Second):
		t.Fatal("tunnel not stopped")
	}
	require.Equal(t, io.EOF, tunnel.Err())
	_, err = tunnel.ReadByte()
	require.Equal(t, io.EOF, err)
}

func TestTunnelBridgeClient(t *testing.T) {
	var device l0.BufferStream
	deviceLink := l0.NewLink(&device)
	local, remote := newChanPipe()
	bridge := NewBridge(deviceLink, local)
	tunnel := NewTunnel(remote)
	client := l0.NewClient(l0.NewLink(tunnel))
	client.Link().Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go bridge.Run(ctx)
	go tunnel.Run(ctx)
	go client.Run(ctx)

	cmd := client.Do(l0.TypeData, []byte{0x42})

	var parser l0.Parser
	var req *l0.Packet
	require.Eventually(t, func() bool {
		for _, b := range device.Output() {
			if pr := parser.Parse(b); pr.Packet != nil {
				req = pr.Packet
			}
		}
		return req != nil
	}, time.Second, time.Millisecond)
	require.Equal(t, cmd.RequestID(), req.ID)
	require.Equal(t, []byte{0x42}, req.Data)

	device.Inject(frameOf(req.ID, l0.TypeData, 0x43)...)
	require.NoError(t, deviceLink.Poll(context.TODO()))

	select {
	case r := <-cmd.ResultChan():
		require.NoError(t, r.Err)
		require.Equal(t, []byte{0x43}, r.Data)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
}

func TestBridgeInLoop(t *testing.T) {
	pr, pw := io.Pipe()
	stream := l0.NewStream(&pipeStream{r: pr})
	link := l0.NewLink(stream)
	link.Interval = time.Millisecond
	local, remote := newChanPipe()
	loop := fx.NewLoop().Add(NewBridge(link, local))

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(context.TODO())
	}()
	pw.Write(frameOf(4, l0.TypeAck))
	require.Equal(t, &Envelope{ID: 4, Type: l0.TypeAck}, remote.readEnvelope(t))

	pw.Close()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
}

type pipeStream struct {
	r *io.PipeReader
}

func (p *pipeStream) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *pipeStream) Write(b []byte) (int, error) {
	return len(b), nil
}
