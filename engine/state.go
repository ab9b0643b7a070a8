// Package engine implements DataKit's availability-driven scheduler: it
// tracks per-port data availability, decides which nodes are ready, drives
// their execution, and suspends/resumes around asynchronous host
// operations.
package engine

import "github.com/dkengine/datakit/value"

// PortStatus is the per-port runtime state from the module contract.
type PortStatus int

const (
	// PortEmpty is the initial state: no value published yet, and none
	// proven impossible.
	PortEmpty PortStatus = iota
	// PortReady means a value has been published on this port.
	PortReady
	// PortNever means no producer will ever publish to this port (its
	// source finished without publishing, or its source was
	// skipped/failed). A Never input forces its node to Skip.
	PortNever
)

// NodeStatus is the per-node runtime state from the module contract.
type NodeStatus int

const (
	// NodePending is the initial state.
	NodePending NodeStatus = iota
	// NodeRunning means the node fired and, for async kinds, is awaiting
	// a host resumption callback.
	NodeRunning
	// NodeDone is a terminal state: the node executed to completion.
	NodeDone
	// NodeSkipped is a terminal state: the node never executed, either
	// because a dependency was proven to never arrive or because an exit
	// node short-circuited the run first.
	NodeSkipped
	// NodeFailed is a terminal state: the node executed and errored.
	// Propagation treats NodeFailed identically to NodeSkipped (,
	// "Skipping vs failing"); the two states are kept distinct only for
	// trace/log visibility.
	NodeFailed
)

func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeRunning:
		return "running"
	case NodeDone:
		return "done"
	case NodeSkipped:
		return "skipped"
	case NodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether s is one of the states a node cannot leave.
func (s NodeStatus) terminal() bool {
	return s == NodeDone || s == NodeSkipped || s == NodeFailed
}

// portValue pairs a port's status with its published value, if any.
type portValue struct {
	status PortStatus
	value  value.V
}
