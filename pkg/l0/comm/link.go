package comm

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/basenode.go/pkg/framework"
)

// Default timings of Link.
const (
	DefaultPollInterval = 5 * time.Millisecond
	DefaultFrameTimeout = 100 * time.Millisecond
)

// Link sends and receives packets over a Stream.
type Link struct {
	Dispatcher

	Stream   Stream
	Interval time.Duration
	// Timeout drops a partial frame if no more bytes arrive in time, 0 disables it.
	Timeout time.Duration

	writer   *Writer
	receiver *Receiver
	lastRecv time.Time
	pollLock sync.Mutex
}

// streamCloser is implemented by streams which can stop delivering bytes.
type streamCloser interface {
	Done() <-chan struct{}
	Err() error
}

// NewLink creates a Link.
func NewLink(s Stream) *Link {
	l := &Link{
		Stream:   s,
		Interval: DefaultPollInterval,
		Timeout:  DefaultFrameTimeout,
		writer:   NewWriter(s),
	}
	l.receiver = NewReceiver(s, &l.Dispatcher)
	return l
}

// Send sends a packet, an id is allocated if pkt.ID is 0.
func (l *Link) Send(pkt *Packet) error {
	if pkt.ID == 0 {
		pkt.ID = l.writer.NextID()
	}
	if glog.V(2) {
		glog.Infof("SND %s", pkt)
	}
	return l.writer.WritePacket(pkt)
}

// Poll receives all bytes currently available.
func (l *Link) Poll(ctx context.Context) error {
	l.pollLock.Lock()
	defer l.pollLock.Unlock()
	now := time.Now()
	n := l.Stream.Available()
	if n == 0 {
		if l.Timeout > 0 && l.Parser.Receiving() && now.Sub(l.lastRecv) >= l.Timeout {
			l.Dispatch(ctx, l.Parser.Timeout())
		}
		return nil
	}
	l.lastRecv = now
	return l.receiver.Receive(ctx, n)
}

// Run polls the stream until ctx is done or the stream is closed.
func (l *Link) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var doneCh <-chan struct{}
	closer, _ := l.Stream.(streamCloser)
	if closer != nil {
		doneCh = closer.Done()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-doneCh:
			if err := l.Poll(ctx); err != nil {
				return err
			}
			if err := closer.Err(); err != nil {
				return err
			}
			return ErrClosed
		case <-ticker.C:
			if err := l.Poll(ctx); err != nil {
				return err
			}
		}
	}
}

// Control implements Controller, polling once per loop iteration.
func (l *Link) Control(cc fx.ControlContext) error {
	return l.Poll(cc.Context())
}

// AddToLoop implements LoopAdder.
func (l *Link) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, l)
}
