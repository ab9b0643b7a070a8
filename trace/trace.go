// Package trace implements the execution-tracing overlay from the module contract:
// when enabled, it records per-node inputs, outputs, and timings, and the
// resulting JSON replaces the outgoing response body.
package trace

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dkengine/datakit/engine"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/value"
)

// HeaderName is the request header that enables tracing.
const HeaderName = "X-DataKit-Debug-Trace"

// Enabled reports whether the given header value turns tracing on: any
// value other than (case-insensitively) "0", "false", "off", or empty.
func Enabled(headerValue string) bool {
	switch strings.ToLower(strings.TrimSpace(headerValue)) {
	case "", "0", "false", "off":
		return false
	default:
		return true
	}
}

// Event is one node-completion record, in the order nodes actually
// completed.
type Event struct {
	Node       string                 `json:"node"`
	Kind       string                 `json:"kind"`
	Status     string                 `json:"status"`
	Inputs     map[string]jsonValue   `json:"inputs"`
	Outputs    map[string]jsonValue   `json:"outputs"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// jsonValue adapts a value.V for JSON encoding via its structured form;
// Raw values encode as their decoded string plus the content type so the
// trace stays inspectable.
type jsonValue struct {
	v value.V
}

// MarshalJSON implements json.Marshaler.
func (j jsonValue) MarshalJSON() ([]byte, error) {
	if raw, ok := j.v.Raw(); ok {
		return json.Marshal(map[string]any{
			"content_type": raw.ContentType,
			"raw":          string(raw.Bytes),
		})
	}
	data, err := j.v.ToJSON()
	if err != nil {
		return json.Marshal(nil)
	}
	return data, nil
}

func wrapValues(in map[string]value.V) map[string]jsonValue {
	if len(in) == 0 {
		return map[string]jsonValue{}
	}
	out := make(map[string]jsonValue, len(in))
	for k, v := range in {
		out[k] = jsonValue{v: v}
	}
	return out
}

// linkRecord is the JSON shape of one graph.Link in the trace document.
type linkRecord struct {
	FromNode string `json:"from_node"`
	FromPort string `json:"from_port"`
	ToNode   string `json:"to_node"`
	ToPort   string `json:"to_port"`
}

// nodeRecord is the JSON shape of one graph.Node in the trace document.
type nodeRecord struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	InputPorts  []string `json:"input_ports"`
	OutputPorts []string `json:"output_ports"`
}

// Document is the full trace payload: a JSON object containing the node
// list, the link list, and the event log.
type Document struct {
	Nodes  []nodeRecord `json:"nodes"`
	Links  []linkRecord `json:"links"`
	Events []Event      `json:"events"`
}

// Recorder implements engine.Tracer, accumulating Events as the scheduler
// fires nodes. A Recorder is created fresh per request.
type Recorder struct {
	g        *graph.Graph
	starts   map[string]time.Time
	events   []Event
	clock    func() time.Time
}

// New creates a Recorder bound to g. clock defaults to time.Now; tests may
// override it for deterministic timings.
func New(g *graph.Graph, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{g: g, starts: make(map[string]time.Time), clock: clock}
}

// NodeStarted implements engine.Tracer.
func (r *Recorder) NodeStarted(nodeID string) {
	r.starts[nodeID] = r.clock()
}

// NodeFinished implements engine.Tracer.
func (r *Recorder) NodeFinished(
	nodeID, kind string,
	status engine.NodeStatus,
	inputs, outputs map[string]value.V,
	errMsg string,
) {
	started, ok := r.starts[nodeID]
	finished := r.clock()
	if !ok {
		started = finished
	}
	r.events = append(r.events, Event{
		Node:       nodeID,
		Kind:       kind,
		Status:     status.String(),
		Inputs:     wrapValues(inputs),
		Outputs:    wrapValues(outputs),
		Error:      errMsg,
		StartedAt:  started,
		FinishedAt: finished,
	})
}

// Document assembles the full trace payload for emission as the outgoing
// response body.
func (r *Recorder) Document() Document {
	nodes := make([]nodeRecord, 0, len(r.g.Nodes()))
	for _, n := range r.g.Nodes() {
		nodes = append(nodes, nodeRecord{
			ID:          n.ID,
			Kind:        n.Kind,
			InputPorts:  n.InputPorts,
			OutputPorts: n.OutputPorts,
		})
	}
	links := make([]linkRecord, 0, len(r.g.Links()))
	for _, l := range r.g.Links() {
		links = append(links, linkRecord{
			FromNode: l.From.Node,
			FromPort: l.From.Name,
			ToNode:   l.To.Node,
			ToPort:   l.To.Name,
		})
	}
	return Document{Nodes: nodes, Links: links, Events: r.events}
}

// JSON renders the trace document as indentless JSON, ready to become the
// outgoing response body.
func (r *Recorder) JSON() ([]byte, error) {
	return json.Marshal(r.Document())
}
