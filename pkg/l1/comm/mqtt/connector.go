package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/basenode.go/pkg/l1"
	"github.com/robotalks/basenode.go/pkg/l1/comm"
)

// Connector implements l1.Connector using MQTT.
type Connector struct {
	DiscoverTimeout time.Duration

	brokerURL string
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	if _, _, err := ClientOptionsFromURL(brokerURL); err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		brokerURL:       brokerURL,
	}, nil
}

func (c *Connector) newQueue() *Queue {
	opts, topicPrefix, _ := ClientOptionsFromURL(c.brokerURL)
	return NewQueue(opts, topicPrefix)
}

// ParseMetaTopic extracts NodeInfo from a retained meta message.
// An empty payload means the node is gone.
func ParseMetaTopic(topic string, payload []byte) (info l1.NodeInfo, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || "/"+items[2] != TopicMeta || len(payload) == 0 {
		return
	}
	info.Ref = l1.NodeRef{Type: items[0], ID: items[1]}
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.Warningf("%s: invalid meta: %v", topic, err)
	}
	return info, info.Ref.IsValid()
}

// Discover implements Connector.
func (c *Connector) Discover(ctx context.Context) (res []l1.NodeInfo, err error) {
	q := c.newQueue()
	if err = q.ConnectWait(ctx); err != nil {
		return
	}
	defer q.Close()
	resCh := make(chan l1.NodeInfo, 1)
	sub := q.Sub("+/+"+TopicMeta, Handler(func(topic string, payload []byte) {
		if info, ok := ParseMetaTopic(topic, payload); ok {
			select {
			case resCh <- info:
			case <-time.After(time.Second):
			}
		}
	}))
	defer sub.Close()

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-timeout:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref l1.NodeRef) (comm.PacketReadWriter, error) {
	conn := &Conn{}
	conn.ReadWriter = NewPacketReadWriter(c.newQueue()).ForConnector(ref).Open()
	if err := conn.Queue.ConnectWait(ctx); err != nil {
		conn.Queue.Close()
		return nil, err
	}
	return conn, nil
}

// Conn is the connection to a node created by Connector.
type Conn struct {
	*ReadWriter
}

// Close implements io.Closer, disconnecting from the broker.
func (c *Conn) Close() error {
	err := c.ReadWriter.Close()
	c.Queue.Close()
	return err
}
