package engine

import (
	"context"

	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/host"
	"github.com/dkengine/datakit/log"
	"github.com/dkengine/datakit/value"
)

// Tracer receives node lifecycle events for the trace overlay.
// It is optional: a nil Tracer disables recording with no behavioral
// change to scheduling.
type Tracer interface {
	NodeStarted(nodeID string)
	NodeFinished(nodeID, kind string, status NodeStatus, inputs, outputs map[string]value.V, errMsg string)
}

// WaveResult summarizes what happened during one RunWave or Resume call.
type WaveResult struct {
	// Exit is non-nil if the exit node fired during this call.
	Exit *graph.ExitResponse
	// Pending lists correlation ids newly suspended during this call —
	// the host glue is expected to track these and call Resume for each
	// once its own dispatch completes.
	Pending []PendingCall
	// Finished reports whether the whole execution has terminated: no
	// node is ready and no call is outstanding.
	Finished bool
}

// PendingCall identifies one newly suspended async node.
type PendingCall struct {
	NodeID string
	ID     host.CorrelationID
}

// Scheduler drives one request's execution over a shared, read-only Graph.
// A Scheduler is not safe for concurrent use; the engine is single-threaded
// cooperative
type Scheduler struct {
	g          *graph.Graph
	tracer     Tracer
	dispatcher host.Dispatcher
	executor   map[string]execBinding

	ports map[graph.Port]*portValue
	nodes map[string]NodeStatus

	phase      graph.Phase
	queue      []string
	queued     map[string]bool
	exited     bool
	exitResult *graph.ExitResponse
	suspended  map[host.CorrelationID]string
}

// execBinding holds whichever behavioral contract a node implements.
type execBinding struct {
	sync  graph.SyncKind
	async graph.AsyncKind
}

// New constructs a Scheduler for g. bindings supplies the per-request
// SyncKind instances for the four implicit nodes (request, service_request,
// service_response, response); every other node's behavior comes directly
// from the shared Graph.
func New(g *graph.Graph, bindings map[string]graph.SyncKind, dispatcher host.Dispatcher, tracer Tracer) *Scheduler {
	s := &Scheduler{
		g:          g,
		tracer:     tracer,
		dispatcher: dispatcher,
		executor:   make(map[string]execBinding, len(g.Nodes())),
		ports:      make(map[graph.Port]*portValue),
		nodes:      make(map[string]NodeStatus, len(g.Nodes())),
		queued:     make(map[string]bool),
		suspended:  make(map[host.CorrelationID]string),
	}
	for _, n := range g.Nodes() {
		s.nodes[n.ID] = NodePending
		for _, p := range n.InputPorts {
			port := graph.Port{Node: n.ID, Name: p}
			// Declared input ports left unlinked in configuration (e.g.
			// call/exit/service_request's optional body/headers) never gate
			// readiness and never appear in the node's collected inputs —
			// they are simply absent, not pending. Only ports with an
			// actual inbound link get runtime state tracked here.
			if _, linked := g.SourceOf(port); linked {
				s.ports[port] = &portValue{status: PortEmpty}
			}
		}
		if n.IsImplicit() {
			s.executor[n.ID] = execBinding{sync: bindings[n.ID]}
			continue
		}
		s.executor[n.ID] = execBinding{sync: n.Sync, async: n.Async}
	}
	return s
}

// RunWave advances the scheduler to at least the given phase and drains
// every node that becomes ready It returns once no
// further progress is possible without either a phase advance or an async
// resumption.
func (s *Scheduler) RunWave(ctx context.Context, phase graph.Phase) (WaveResult, error) {
	if phase > s.phase {
		s.phase = phase
	}
	if s.exited {
		return WaveResult{Exit: s.exitResult, Finished: true}, nil
	}
	for _, n := range s.g.Nodes() {
		if s.nodes[n.ID] == NodePending && n.Phase <= s.phase {
			s.enqueue(n.ID)
		}
	}
	pending, err := s.drain(ctx)
	return s.result(pending), err
}

// Resume finalizes the async node identified by id with result, then
// drains any further readiness it unlocks.
// Resuming an unknown or already-finished correlation id is a no-op — this
// happens legitimately when the engine already short-circuited via exit.
func (s *Scheduler) Resume(ctx context.Context, id host.CorrelationID, result host.DispatchResult) (WaveResult, error) {
	nodeID, ok := s.suspended[id]
	if !ok {
		log.Debugf("datakit: resume for unknown correlation id %s ignored", id)
		return s.result(nil), nil
	}
	delete(s.suspended, id)
	if s.exited {
		return WaveResult{Exit: s.exitResult, Finished: true}, nil
	}

	bind := s.executor[nodeID]
	node, _ := s.g.Node(nodeID)
	inputs := s.collectInputs(node)

	var res graph.Result
	var execErr error
	if result.Err != nil {
		execErr = errkind.Dispatchf("call %q: %v", nodeID, result.Err)
	} else {
		res, execErr = bind.async.Finish(ctx, result)
	}
	s.finishNode(nodeID, node, inputs, res, execErr)

	pending, err := s.drain(ctx)
	return s.result(pending), err
}

func (s *Scheduler) result(pending []PendingCall) WaveResult {
	return WaveResult{
		Exit:     s.exitResult,
		Pending:  pending,
		Finished: s.isFinished(),
	}
}

func (s *Scheduler) isFinished() bool {
	if s.exited {
		return true
	}
	if len(s.suspended) > 0 {
		return false
	}
	for _, st := range s.nodes {
		if !st.terminal() {
			return false
		}
	}
	return true
}

func (s *Scheduler) enqueue(nodeID string) {
	if s.queued[nodeID] {
		return
	}
	s.queued[nodeID] = true
	s.queue = append(s.queue, nodeID)
}

// drain processes the ready-check queue until empty, firing every node
// that turns out ready and propagating the resulting availability changes.
// It returns the correlation ids of any call nodes newly suspended.
func (s *Scheduler) drain(ctx context.Context) ([]PendingCall, error) {
	var newlyPending []PendingCall
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.queued[id] = false

		if s.exited {
			continue
		}
		node, ok := s.g.Node(id)
		if !ok || s.nodes[id].terminal() || s.nodes[id] == NodeRunning {
			continue
		}
		if node.Phase > s.phase {
			continue
		}

		switch readiness(s.inputStatuses(node)) {
		case statusBlocked:
			continue
		case statusNever:
			s.skipNode(id, node)
		case statusReady:
			pc, err := s.fireNode(ctx, id, node)
			if err != nil {
				return newlyPending, err
			}
			if pc != nil {
				newlyPending = append(newlyPending, *pc)
			}
		}
	}
	return newlyPending, nil
}

type readinessState int

const (
	statusBlocked readinessState = iota
	statusReady
	statusNever
)

// inputStatuses returns the statuses of n's linked input ports only.
// Declared-but-unlinked ports (the "optional" call/exit/
// service_request ports) are vacuously satisfied and excluded here.
func (s *Scheduler) inputStatuses(n *graph.Node) []PortStatus {
	var out []PortStatus
	for _, p := range n.InputPorts {
		pv, ok := s.ports[graph.Port{Node: n.ID, Name: p}]
		if !ok {
			continue
		}
		out = append(out, pv.status)
	}
	return out
}

func readiness(statuses []PortStatus) readinessState {
	ready := true
	for _, st := range statuses {
		switch st {
		case PortNever:
			return statusNever
		case PortEmpty:
			ready = false
		}
	}
	if ready {
		return statusReady
	}
	return statusBlocked
}

func (s *Scheduler) collectInputs(n *graph.Node) graph.Inputs {
	in := make(graph.Inputs, len(n.InputPorts))
	for _, p := range n.InputPorts {
		pv, ok := s.ports[graph.Port{Node: n.ID, Name: p}]
		if ok && pv.status == PortReady {
			in[p] = pv.value
		}
	}
	return in
}

func (s *Scheduler) fireNode(ctx context.Context, id string, node *graph.Node) (*PendingCall, error) {
	bind := s.executor[id]
	inputs := s.collectInputs(node)
	s.nodes[id] = NodeRunning
	if s.tracer != nil {
		s.tracer.NodeStarted(id)
	}

	if bind.async != nil {
		corrID, err := bind.async.Start(ctx, inputs, s.dispatcher)
		if err != nil {
			s.finishNode(id, node, inputs, graph.Result{}, errkind.Dispatchf("call %q: %v", id, err))
			return nil, nil
		}
		s.suspended[corrID] = id
		return &PendingCall{NodeID: id, ID: corrID}, nil
	}

	res, err := bind.sync.Execute(ctx, inputs)
	s.finishNode(id, node, inputs, res, err)
	return nil, nil
}

// finishNode records a node's terminal Done/Failed state, publishes
// whatever outputs it produced, and starts skip-propagation for any output
// ports it left unpublished.
func (s *Scheduler) finishNode(id string, node *graph.Node, inputs graph.Inputs, res graph.Result, err error) {
	status := NodeDone
	errMsg := ""
	if err != nil {
		status = NodeFailed
		errMsg = err.Error()
		log.Errorf("datakit: node %q failed: %v", id, err)
	}
	s.nodes[id] = status

	if s.tracer != nil {
		s.tracer.NodeFinished(id, node.Kind, status, inputs, res.Outputs, errMsg)
	}

	if status == NodeDone && res.Exit != nil {
		s.triggerExit(res.Exit)
		return
	}

	for _, portName := range node.OutputPorts {
		out := graph.Port{Node: id, Name: portName}
		if v, published := res.Outputs[portName]; status == NodeDone && published {
			s.publish(out, v)
		} else {
			s.propagateNever(out)
		}
	}
}

// skipNode marks a node Skipped because one of its inputs was proven
// Never, and propagates Never through every one of its own output ports.
func (s *Scheduler) skipNode(id string, node *graph.Node) {
	s.nodes[id] = NodeSkipped
	if s.tracer != nil {
		s.tracer.NodeFinished(id, node.Kind, NodeSkipped, nil, nil, "")
	}
	for _, portName := range node.OutputPorts {
		s.propagateNever(graph.Port{Node: id, Name: portName})
	}
}

// publish marks every downstream input port of an output port Ready and
// re-checks each destination node's readiness.
func (s *Scheduler) publish(out graph.Port, v value.V) {
	for _, in := range s.g.DestinationsOf(out) {
		pv := s.ports[in]
		if pv.status != PortEmpty {
			continue
		}
		pv.status = PortReady
		pv.value = v
		s.enqueue(in.Node)
	}
}

// propagateNever marks every destination of out as permanently unreachable
// and re-checks those nodes — this is how Skipped/Failed/under-published
// nodes cascade downstream.
func (s *Scheduler) propagateNever(out graph.Port) {
	for _, in := range s.g.DestinationsOf(out) {
		pv := s.ports[in]
		if pv.status != PortEmpty {
			continue
		}
		pv.status = PortNever
		s.enqueue(in.Node)
	}
}

// triggerExit implements the short-circuit: every non-terminal
// node is marked Skipped and further scheduling stops.
func (s *Scheduler) triggerExit(exit *graph.ExitResponse) {
	s.exited = true
	s.exitResult = exit
	for id, st := range s.nodes {
		if st.terminal() {
			continue
		}
		s.nodes[id] = NodeSkipped
		if s.tracer != nil {
			node, _ := s.g.Node(id)
			kind := ""
			if node != nil {
				kind = node.Kind
			}
			s.tracer.NodeFinished(id, kind, NodeSkipped, nil, nil, "")
		}
	}
	s.queue = nil
	for k := range s.queued {
		s.queued[k] = false
	}
}
