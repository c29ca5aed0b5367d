package comm

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/basenode.go/pkg/framework"
	l0 "github.com/robotalks/basenode.go/pkg/l0/comm"
)

// Bridge forwards packets between a Link and a PacketReadWriter.
// Packets received on the Link are written as Envelopes, and Envelopes
// read from the PacketReadWriter are sent on the Link with their ids kept,
// so replies from the node match the remote requests.
type Bridge struct {
	Link       *l0.Link
	ReadWriter PacketReadWriter

	sendLock sync.Mutex
}

// NewBridge creates a Bridge and takes over packet handling of the link.
func NewBridge(link *l0.Link, rw PacketReadWriter) *Bridge {
	b := &Bridge{Link: link, ReadWriter: rw}
	link.Handler = b
	return b
}

// HandlePacket implements l0.PacketHandler.
func (b *Bridge) HandlePacket(ctx context.Context, pkt *l0.Packet) {
	b.sendLock.Lock()
	err := WriteEnvelope(b.ReadWriter, EnvelopeOf(pkt))
	b.sendLock.Unlock()
	if err != nil {
		glog.Warningf("forward %s: %v", pkt, err)
	}
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	closer, ok := b.ReadWriter.(io.Closer)
	if !ok {
		closer = io.NopCloser(nil)
	}
	return fx.RunWithContextCloser(ctx, closer, func() error {
		for {
			e, err := ReadEnvelope(b.ReadWriter)
			if errors.Is(err, ErrInvalidEnvelope) {
				glog.Warningf("drop envelope: %v", err)
				continue
			}
			if err != nil {
				return err
			}
			if err = b.Link.Send(e.Packet()); err != nil {
				return err
			}
		}
	})
}

// AddToLoop implements LoopAdder.
// The Link runs on its own so a closed stream stops the loop.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(b.Link)
	if runnable, ok := b.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(b)
}
