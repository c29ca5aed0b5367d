package env

import (
	"context"
	"fmt"
	"net/url"

	"github.com/robotalks/basenode.go/pkg/l0/comm"
	"github.com/robotalks/basenode.go/pkg/l0/serial"
	"github.com/robotalks/basenode.go/pkg/l1"
	l1comm "github.com/robotalks/basenode.go/pkg/l1/comm"
	"github.com/robotalks/basenode.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/basenode.go/pkg/l1/comm/stream"
	"github.com/robotalks/basenode.go/pkg/l1/comm/websocket"
)

func (c *Config) scheme() (string, error) {
	parsedURL, err := url.Parse(c.BrokerURL)
	if err != nil {
		return "", fmt.Errorf("invalid broker URL: %w", err)
	}
	return parsedURL.Scheme, nil
}

// NewConnector creates a Connector for discovering bridged nodes.
func (c *Config) NewConnector() (l1.Connector, error) {
	scheme, err := c.scheme()
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "mqtt", "ssl":
		return mqtt.NewConnector(c.BrokerURL)
	default:
		return nil, fmt.Errorf("discovery not supported by %q", scheme)
	}
}

// Dial opens the packet channel of the bridge side.
// MQTT brokers publish the node, other transports dial a relay directly.
func (c *Config) Dial(ctx context.Context) (l1comm.PacketReadWriter, error) {
	if !c.Node.Ref.IsValid() {
		return nil, fmt.Errorf("node type and id must be specified")
	}
	scheme, err := c.scheme()
	if err != nil {
		return nil, err
	}
	if scheme == "mqtt" || scheme == "ssl" {
		info := c.Node
		info.Meta.Port, info.Meta.BaudRate = c.Serial.Port, c.Serial.BaudRate
		node, err := mqtt.NewNode(c.BrokerURL, info)
		if err != nil {
			return nil, err
		}
		return node, nil
	}
	return c.dialDirect(ctx, scheme)
}

// Connect opens the packet channel to the configured node.
func (c *Config) Connect(ctx context.Context) (l1comm.PacketReadWriter, error) {
	scheme, err := c.scheme()
	if err != nil {
		return nil, err
	}
	if scheme == "mqtt" || scheme == "ssl" {
		if !c.Node.Ref.IsValid() {
			return nil, fmt.Errorf("node type and id must be specified")
		}
		connector, err := mqtt.NewConnector(c.BrokerURL)
		if err != nil {
			return nil, err
		}
		return connector.Connect(ctx, c.Node.Ref)
	}
	return c.dialDirect(ctx, scheme)
}

func (c *Config) dialDirect(ctx context.Context, scheme string) (l1comm.PacketReadWriter, error) {
	var rw l1comm.PacketReadWriter
	var err error
	switch scheme {
	case "ws", "wss":
		rw, err = websocket.Dial(c.BrokerURL, "")
	case "tcp":
		u, _ := url.Parse(c.BrokerURL)
		rw, err = stream.Dial(ctx, u.Host)
	default:
		return nil, fmt.Errorf("unknown broker URL scheme: %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	return rw, nil
}

// NewLink creates a Link with configured timings.
func (c *Config) NewLink(s comm.Stream) *comm.Link {
	link := comm.NewLink(s)
	link.Interval, link.Timeout = c.PollInterval, c.FrameTimeout
	return link
}

// OpenSerial opens the configured serial port.
func (c *Config) OpenSerial() (*serial.Port, error) {
	return c.Serial.Open()
}
