package config

import (
	"sort"
	"strconv"
	"time"

	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/node/call"
	"github.com/dkengine/datakit/node/exitnode"
	"github.com/dkengine/datakit/node/jq"
	"github.com/dkengine/datakit/node/template"
)

// implicitPorts fixes the port sets of the four reserved endpoint nodes
//, used only to register their shape in the Graph; their
// actual SyncKind is bound per-request by the filter package.
var implicitPorts = map[string]struct{ in, out []string }{
	graph.Request:         {out: []string{"body", "headers"}},
	graph.ServiceRequest:  {in: []string{"body", "headers"}},
	graph.ServiceResponse: {out: []string{"body", "headers"}},
	graph.Response:        {in: []string{"body", "headers"}},
}

// Build validates doc and compiles it into a ready-to-share Graph. Build
// should be called once per configuration; the resulting Graph, and every
// node kind instance it holds, is safe to reuse across every request that
// configuration serves.
func Build(doc *Document) (*graph.Graph, error) {
	if err := NewValidator().Validate(doc); err != nil {
		return nil, err
	}

	nodeType := make(map[string]string, len(doc.Nodes))
	inputPortSets := make(map[string]map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeType[n.ID] = n.Type
		ports := make(map[string]bool, len(n.InputPorts))
		for _, p := range n.InputPorts {
			ports[p] = true
		}
		inputPortSets[n.ID] = ports
	}

	links := make([]Link, len(doc.Links))
	copy(links, doc.Links)
	for i := range links {
		l := &links[i]
		if l.ToPort == "" {
			// Synthesize the input port name for an unnamed jq/template
			// destination: source node/port with every
			// non-identifier character replaced by '_'.
			l.ToPort = sanitizePortName(l.FromNode + "_" + l.FromPort)
		}
		if inputPortSets[l.ToNode] == nil {
			inputPortSets[l.ToNode] = make(map[string]bool)
		}
		inputPortSets[l.ToNode][l.ToPort] = true
	}

	b := graph.NewBuilder()
	for _, n := range doc.Nodes {
		node, err := buildNode(n, sortedKeys(inputPortSets[n.ID]))
		if err != nil {
			return nil, err
		}
		if err := b.AddNode(node); err != nil {
			return nil, err
		}
	}
	for id, ports := range implicitPorts {
		if err := b.AddNode(&graph.Node{
			ID:          id,
			Kind:        "implicit",
			InputPorts:  ports.in,
			OutputPorts: ports.out,
		}); err != nil {
			return nil, err
		}
	}
	for _, l := range links {
		b.AddLink(graph.Port{Node: l.FromNode, Name: l.FromPort}, graph.Port{Node: l.ToNode, Name: l.ToPort})
	}

	return b.Build()
}

func buildNode(n Node, derivedInputPorts []string) (*graph.Node, error) {
	switch n.Type {
	case TypeCall:
		url, _ := n.Attributes["url"].(string)
		method, _ := n.Attributes["method"].(string)
		timeout, err := attrDuration(n.Attributes["timeout"])
		if err != nil {
			return nil, errkind.Configurationf("config: node %q: timeout: %v", n.ID, err)
		}
		c, err := call.New(url, method, timeout)
		if err != nil {
			return nil, err
		}
		return &graph.Node{
			ID: n.ID, Kind: n.Type,
			InputPorts: c.InputPorts(), OutputPorts: c.OutputPorts(),
			Async: c,
		}, nil

	case TypeJQ:
		query, _ := n.Attributes["jq"].(string)
		q, err := jq.New(derivedInputPorts, n.OutputPorts, query)
		if err != nil {
			return nil, err
		}
		return &graph.Node{
			ID: n.ID, Kind: n.Type,
			InputPorts: q.InputPorts(), OutputPorts: q.OutputPorts(),
			Sync: q,
		}, nil

	case TypeTemplate:
		tplSrc, _ := n.Attributes["template"].(string)
		contentType, _ := n.Attributes["content_type"].(string)
		t, err := template.New(derivedInputPorts, tplSrc, contentType)
		if err != nil {
			return nil, err
		}
		return &graph.Node{
			ID: n.ID, Kind: n.Type,
			InputPorts: t.InputPorts(), OutputPorts: t.OutputPorts(),
			Sync: t,
		}, nil

	case TypeExit:
		status, err := attrInt(n.Attributes["status"])
		if err != nil {
			return nil, errkind.Configurationf("config: node %q: status: %v", n.ID, err)
		}
		e := exitnode.New(status)
		return &graph.Node{
			ID: n.ID, Kind: n.Type,
			InputPorts: e.InputPorts(), OutputPorts: e.OutputPorts(),
			Sync: e,
		}, nil

	default:
		return nil, errkind.Configurationf("config: node %q: unknown node type %q", n.ID, n.Type)
	}
}

// sanitizePortName implements the naming rule: replace every
// character that is not a letter, digit, or underscore with '_'.
func sanitizePortName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// attrDuration accepts a timeout in seconds in whatever numeric form the
// source decoder produced.
func attrDuration(v any) (time.Duration, error) {
	if v == nil {
		return 0, nil
	}
	seconds, err := attrFloat(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func attrInt(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	f, err := attrFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func attrFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, errkind.Configurationf("config: expected a number, got %T", v)
	}
}
