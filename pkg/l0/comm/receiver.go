package comm

import (
	"context"
	"io"

	"github.com/golang/glog"
)

// Stream is the byte stream a node is attached to.
type Stream interface {
	io.Writer
	io.ByteReader
	// Available returns the number of bytes readable without blocking.
	Available() int
}

// ByteParser accepts received bytes one at a time.
type ByteParser interface {
	ParseByte(ctx context.Context, b byte)
}

// ParseByteFunc is func type of ByteParser.
type ParseByteFunc func(context.Context, byte)

// ParseByte implements ByteParser.
func (f ParseByteFunc) ParseByte(ctx context.Context, b byte) {
	f(ctx, b)
}

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// ErrorHandler is called when a frame is rejected.
type ErrorHandler interface {
	HandleError(context.Context, error)
}

// HandleErrorFunc is func type of ErrorHandler.
type HandleErrorFunc func(context.Context, error)

// HandleError implements ErrorHandler.
func (f HandleErrorFunc) HandleError(ctx context.Context, err error) {
	f(ctx, err)
}

// Receiver forwards available bytes from a stream to a ByteParser.
type Receiver struct {
	r      io.ByteReader
	parser ByteParser
}

// NewReceiver creates a Receiver.
func NewReceiver(r io.ByteReader, parser ByteParser) *Receiver {
	return &Receiver{r: r, parser: parser}
}

// Receive reads exactly count bytes, passing each to the parser in arrival
// order before reading the next one. If the stream runs short, bytes already
// read stay delivered and a *ShortReadError is returned.
func (r *Receiver) Receive(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		b, err := r.r.ReadByte()
		if err != nil {
			return &ShortReadError{Requested: count, Delivered: i, Err: err}
		}
		r.parser.ParseByte(ctx, b)
	}
	return nil
}

// Dispatcher drives a Parser and reports its results.
type Dispatcher struct {
	Parser       Parser
	Handler      PacketHandler
	ErrorHandler ErrorHandler
}

// ParseByte implements ByteParser.
func (d *Dispatcher) ParseByte(ctx context.Context, b byte) {
	d.Dispatch(ctx, d.Parser.Parse(b))
}

// Dispatch reports one ParseResult.
func (d *Dispatcher) Dispatch(ctx context.Context, pr ParseResult) {
	if pr.Err != nil {
		if h := d.ErrorHandler; h != nil {
			h.HandleError(ctx, pr.Err)
		} else {
			glog.Warningf("frame dropped: %v", pr.Err)
		}
	}
	if pr.Packet != nil {
		if glog.V(2) {
			glog.Infof("RCV %s", pr.Packet)
		}
		if h := d.Handler; h != nil {
			h.HandlePacket(ctx, pr.Packet)
		}
	}
}
