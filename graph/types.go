// Package graph implements DataKit's graph representation: nodes, ports,
// links, and the structural invariants from the module contract. A Graph is built
// once per configuration and is safe to share, read-only, across requests.
package graph

import (
	"context"

	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/value"
)

// Reserved node IDs for the four implicit endpoints.
const (
	Request         = "request"
	ServiceRequest  = "service_request"
	ServiceResponse = "service_response"
	Response        = "response"
)

// IsReserved reports whether id names one of the four implicit nodes.
func IsReserved(id string) bool {
	switch id {
	case Request, ServiceRequest, ServiceResponse, Response:
		return true
	default:
		return false
	}
}

// Phase gates when a node is eligible to fire Phase values
// are ordered: a node is never eligible before its own phase's proxy hook
// has fired.
type Phase int

const (
	// PhaseRequest covers nodes reachable using only request-phase data.
	PhaseRequest Phase = iota
	// PhaseResponse covers nodes that transitively depend on
	// service_response.
	PhaseResponse
)

// Inputs maps an input port name to the value published on it.
type Inputs map[string]value.V

// ExitResponse is populated by the exit node kind to
// signal a short-circuit: the scheduler stops draining further nodes and
// the host proxy responds directly from this value.
type ExitResponse struct {
	Status     int
	Body       value.V
	HasBody    bool
	Headers    value.V
	HasHeaders bool
}

// Result is what a node kind produces on completion. Outputs holds only
// the ports the node actually published to; omitted ports drive the
// Skipped-propagation rule in . Exit is non-nil only for the exit
// node kind.
type Result struct {
	Outputs map[string]value.V
	Exit    *ExitResponse
}

// SyncKind is the behavioral contract for node kinds that run to
// completion synchronously given their inputs: jq, template, exit, and the
// four implicit nodes.
type SyncKind interface {
	InputPorts() []string
	OutputPorts() []string
	Execute(ctx context.Context, in Inputs) (Result, error)
}

// AsyncKind is the behavioral contract for node kinds that suspend on a
// host operation. call is the only async kind.
type AsyncKind interface {
	InputPorts() []string
	OutputPorts() []string
	// Start issues the host operation and returns a correlation id the
	// scheduler will see again in Finish via the host's resumption
	// callback.
	Start(ctx context.Context, in Inputs, disp host.Dispatcher) (host.CorrelationID, error)
	// Finish is invoked once the host resumes with a dispatch result.
	Finish(ctx context.Context, result host.DispatchResult) (Result, error)
}

// Node is a node's static, per-configuration description: its identity,
// kind, port sets, and (for non-implicit nodes) its compiled behavior.
// Node instances are immutable after Builder.Build returns and are shared
// across every request executing this configuration.
type Node struct {
	ID          string
	Kind        string
	InputPorts  []string
	OutputPorts []string
	Phase       Phase

	// Exactly one of Sync/Async is set for non-implicit nodes. Both are nil
	// for the four reserved implicit nodes — the engine binds a fresh
	// SyncKind to each of those per request (see the implicit package).
	Sync  SyncKind
	Async AsyncKind
}

// IsImplicit reports whether n is one of the four reserved endpoint nodes.
func (n *Node) IsImplicit() bool { return IsReserved(n.ID) }

// Link is a directed edge from one output port to one input port.
type Link struct {
	From Port // output port
	To   Port // input port
}

// Port identifies a named input or output port on a node.
type Port struct {
	Node string
	Name string
}
