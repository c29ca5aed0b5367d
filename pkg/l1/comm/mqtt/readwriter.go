package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/robotalks/basenode.go/pkg/l1"
)

// Topic suffixes of a node.
const (
	// TopicRx carries packets received from the node.
	TopicRx = "/rx"
	// TopicTx carries packets to be sent to the node.
	TopicTx = "/tx"
	// TopicMeta carries retained NodeMeta in JSON.
	TopicMeta = "/meta"
)

// ReadWriter implements PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	sub       *Subscription
	subLock   sync.Mutex
}

// DefaultPacketQueueSize is the capacity of received packets not yet read.
const DefaultPacketQueueSize = 64

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, DefaultPacketQueueSize),
		closeCh:  make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForBridge sets topics using default convention for bridges:
// SubTopic = name/tx
// PubTopic = name/rx
func (p *ReadWriter) ForBridge(ref l1.NodeRef) *ReadWriter {
	prefix := ref.Name()
	return p.WithTopics(prefix+TopicTx, prefix+TopicRx)
}

// ForConnector sets topics using default convention for remote tools:
// SubTopic = name/rx
// PubTopic = name/tx
func (p *ReadWriter) ForConnector(ref l1.NodeRef) *ReadWriter {
	prefix := ref.Name()
	return p.WithTopics(prefix+TopicRx, prefix+TopicTx)
}

// Open subscribes SubTopic.
func (p *ReadWriter) Open() *ReadWriter {
	p.subLock.Lock()
	if p.sub == nil {
		p.sub = p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	}
	p.subLock.Unlock()
	return p
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer, the subscription is removed.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		p.subLock.Lock()
		sub := p.sub
		p.sub = nil
		p.subLock.Unlock()
		if sub != nil {
			err = sub.Close()
		}
	})
	return
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	p.Open()
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return nil
	}
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
	}
}
