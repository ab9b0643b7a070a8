// Package jq implements the `jq` transformation node kind: a
// pure, deterministic JSON query evaluated against named input ports.
package jq

import (
	"context"

	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/query/cel"
	"github.com/dkengine/datakit/value"
)

// Node is a compiled `jq` node. One Node is built per configured node and
// shared read-only across requests.
type Node struct {
	inputPorts  []string
	outputPorts []string
	query       *cel.Query
}

// New compiles queryExpr against inputPorts and returns the node kind.
// Compilation happens once per configuration and the resulting program is
// reused across every request the configuration serves.
func New(inputPorts, outputPorts []string, queryExpr string) (*Node, error) {
	q, err := cel.Compile(queryExpr, inputPorts)
	if err != nil {
		return nil, err
	}
	return &Node{
		inputPorts:  append([]string(nil), inputPorts...),
		outputPorts: append([]string(nil), outputPorts...),
		query:       q,
	}, nil
}

// InputPorts implements graph.SyncKind.
func (n *Node) InputPorts() []string { return n.inputPorts }

// OutputPorts implements graph.SyncKind.
func (n *Node) OutputPorts() []string { return n.outputPorts }

// Execute implements graph.SyncKind. The query's result distributes to the
// declared output ports in order: with a single output port the whole
// result goes there; with multiple output ports the result is expected to
// be an array, each element mapping to the output at the same position.
// Surplus output ports are left unpublished, which the scheduler turns
// into Skipped propagation.
func (n *Node) Execute(_ context.Context, inputs graph.Inputs) (graph.Result, error) {
	result, err := n.query.Eval(inputs)
	if err != nil {
		return graph.Result{}, err
	}

	values := []value.V{result}
	if len(n.outputPorts) > 1 {
		if items, ok := result.ArrayItems(); ok {
			values = items
		}
	}

	outputs := make(map[string]value.V, len(n.outputPorts))
	for i, port := range n.outputPorts {
		if i < len(values) {
			outputs[port] = values[i]
		}
	}
	return graph.Result{Outputs: outputs}, nil
}
