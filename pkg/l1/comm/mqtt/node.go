package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	"github.com/robotalks/basenode.go/pkg/l1"
)

// Node publishes a bridged node to MQTT.
// It announces NodeInfo.Meta (retained) on name/meta, which is cleared on
// exit or by the will message, and exchanges packets on name/rx and name/tx.
type Node struct {
	*ReadWriter
	Info l1.NodeInfo

	metaJSON []byte
}

// NewNode creates a Node.
func NewNode(brokerURL string, info l1.NodeInfo) (*Node, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.Ref.Name()+TopicMeta, nil, 1, true)
	n := &Node{Info: info, metaJSON: meta}
	q := NewQueue(opts, topicPrefix)
	q.OnConnect = func(*Queue) { n.announce() }
	n.ReadWriter = NewPacketReadWriter(q).ForBridge(info.Ref)
	return n, nil
}

// Run implements Runnable.
func (n *Node) Run(ctx context.Context) error {
	n.Open()
	n.Queue.Connect()
	defer n.Queue.Close()
	err := n.ReadWriter.Run(ctx)
	n.Queue.PubWith(n.Info.Ref.Name()+TopicMeta, nil, 1, true).Wait()
	return err
}

func (n *Node) announce() {
	glog.Infof("announce %s", n.Info.Ref.Name())
	n.Queue.PubWith(n.Info.Ref.Name()+TopicMeta, n.metaJSON, 1, true)
}
