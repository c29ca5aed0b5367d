package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Result is the result of a command using Do.
type Result struct {
	Err  error
	Type PacketType
	Data []byte
}

// Client provides request/reply operations over Link.
type Client struct {
	link     *Link
	eventCh  chan *Packet
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
}

// Command represents a pending command waiting for reply.
type Command struct {
	requestID PacketID
	resultCh  chan Result
	next      *Command
}

// RequestID returns the request packet id.
func (c *Command) RequestID() PacketID {
	return c.requestID
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// DefaultEventQueueSize is the capacity of the event chan.
const DefaultEventQueueSize = 16

// NewClient creates client and wraps the link.
func NewClient(link *Link) *Client {
	c := &Client{
		link:    link,
		eventCh: make(chan *Packet, DefaultEventQueueSize),
	}
	c.link.Handler = c
	return c
}

// Link gets wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// EventChan retrieves packets which are not replies to any command.
func (c *Client) EventChan() <-chan *Packet {
	return c.eventCh
}

// DoWith sends a command and expects a result in the provided chan.
func (c *Client) DoWith(pkt *Packet, ch chan Result) *Command {
	cmd := &Command{resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	err := c.link.Send(pkt)
	cmd.requestID = pkt.ID
	if err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a Command for result.
func (c *Client) Do(typ PacketType, data []byte) *Command {
	return c.DoWith(&Packet{Type: typ, Data: data}, make(chan Result, 1))
}

// Ping sends an ID_REQUEST, the peer replies ID_RESPONSE with the same id.
func (c *Client) Ping() *Command {
	return c.Do(TypeIDRequest, nil)
}

// HandlePacket implements PacketHandler.
func (c *Client) HandlePacket(ctx context.Context, pkt *Packet) {
	if pkt.Type == TypeIDRequest {
		if err := c.link.Send(&Packet{ID: pkt.ID, Type: TypeIDResponse}); err != nil {
			glog.Warningf("reply %s: %v", pkt, err)
		}
		return
	}
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.requestID == pkt.ID {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	if curr == nil {
		head = nil
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		c.postEvent(pkt)
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	if pkt.Type == TypeNack {
		curr.resultCh <- Result{Err: ErrNack, Type: pkt.Type}
	} else {
		curr.resultCh <- Result{Type: pkt.Type, Data: pkt.Data}
	}
}

// Run wraps Link.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.link.Run(ctx)
}

func (c *Client) postEvent(pkt *Packet) {
	select {
	case c.eventCh <- pkt:
	default:
		glog.Warningf("event queue full, dropped %s", pkt)
	}
}
