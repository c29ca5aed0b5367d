package l1

import (
	"context"

	"github.com/robotalks/basenode.go/pkg/l1/comm"
)

// NodeRef is a reference to a bridged node.
type NodeRef struct {
	// Type is node type (firmware kind).
	Type string
	// ID is unique ID of the bridge host.
	ID string
}

// Name retrieves the name from ref.
func (r NodeRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates NodeRef is valid.
func (r NodeRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// NodeMeta provides metadata of a bridged node.
type NodeMeta struct {
	Description string            `json:"description,omitempty"`
	Port        string            `json:"port,omitempty"`
	BaudRate    int               `json:"baud,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// NodeInfo provides information of a bridged node.
type NodeInfo struct {
	Ref  NodeRef
	Meta NodeMeta
}

// Connector is used by remote tools to reach a bridged node.
type Connector interface {
	// Discover enumerates registered nodes.
	Discover(context.Context) ([]NodeInfo, error)
	// Connect opens the envelope channel to the specified node.
	Connect(context.Context, NodeRef) (comm.PacketReadWriter, error)
}
