// Package exitnode implements the `exit` node kind: the
// engine-level short-circuit that populates the outgoing response directly
// and bypasses any remaining nodes, including upstream dispatch.
package exitnode

import (
	"context"

	"github.com/dkengine/datakit/graph"
)

const (
	bodyPort    = "body"
	headersPort = "headers"
)

// Node is a compiled `exit` node.
type Node struct {
	status int
}

// New returns the node kind with the given response status (
// default 200).
func New(status int) *Node {
	if status == 0 {
		status = 200
	}
	return &Node{status: status}
}

// InputPorts implements graph.SyncKind. Both ports are optional: an
// unlinked port simply contributes no body/headers override.
func (n *Node) InputPorts() []string { return []string{bodyPort, headersPort} }

// OutputPorts implements graph.SyncKind. exit has no outputs.
func (n *Node) OutputPorts() []string { return nil }

// Execute implements graph.SyncKind, populating graph.Result.Exit so the
// scheduler's triggerExit short-circuit fires.
func (n *Node) Execute(_ context.Context, inputs graph.Inputs) (graph.Result, error) {
	exit := &graph.ExitResponse{Status: n.status}
	if body, ok := inputs[bodyPort]; ok {
		exit.Body, exit.HasBody = body, true
	}
	if headers, ok := inputs[headersPort]; ok {
		exit.Headers, exit.HasHeaders = headers, true
	}
	return graph.Result{Exit: exit}, nil
}
