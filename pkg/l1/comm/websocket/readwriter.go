package websocket

import "golang.org/x/net/websocket"

// DefaultOrigin is used by Dial when origin is not specified.
const DefaultOrigin = "http://localhost/"

// ReadWriter implements PacketReadWriter.
// Each packet is a binary websocket message.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	conn.PayloadType = websocket.BinaryFrame
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket server, e.g. ws://host:port/path.
func Dial(url, origin string) (*ReadWriter, error) {
	if origin == "" {
		origin = DefaultOrigin
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Handler serves each accepted connection as a ReadWriter.
func Handler(fn func(*ReadWriter)) websocket.Handler {
	return func(conn *websocket.Conn) {
		fn(New(conn))
	}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
