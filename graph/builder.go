package graph

import (
	"github.com/dkengine/datakit/errkind"
)

// Builder accumulates nodes and links and produces a validated Graph.
// Mirrors : "Construction accepts a node list and a link list. It
// validates the structural invariants above and materializes an efficient
// adjacency."
type Builder struct {
	nodes     map[string]*Node
	declOrder []string
	links     []Link
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Node)}
}

// AddNode registers a node. Node IDs must be unique within the graph.
func (b *Builder) AddNode(n *Node) error {
	if n.ID == "" {
		return errkind.Configurationf("graph: node id cannot be empty")
	}
	if _, exists := b.nodes[n.ID]; exists {
		return errkind.Configurationf("graph: duplicate node id %q", n.ID)
	}
	b.nodes[n.ID] = n
	b.declOrder = append(b.declOrder, n.ID)
	return nil
}

// AddLink registers a directed link from an output port to an input port.
func (b *Builder) AddLink(from, to Port) {
	b.links = append(b.links, Link{From: from, To: to})
}

// Build validates the structural invariants from the module contract and returns
// the compiled, read-only Graph.
func (b *Builder) Build() (*Graph, error) {
	if err := b.validateNodesAndLinks(); err != nil {
		return nil, err
	}

	inbound := make(map[Port]Port, len(b.links))
	outbound := make(map[Port][]Port, len(b.links))
	seenInput := make(map[Port]bool, len(b.links))

	for _, link := range b.links {
		srcNode, ok := b.nodes[link.From.Node]
		if !ok {
			return nil, errkind.Configurationf("graph: link source node %q does not exist", link.From.Node)
		}
		if !containsPort(srcNode.OutputPorts, link.From.Name) {
			return nil, errkind.Configurationf("graph: node %q has no output port %q", link.From.Node, link.From.Name)
		}
		dstNode, ok := b.nodes[link.To.Node]
		if !ok {
			return nil, errkind.Configurationf("graph: link destination node %q does not exist", link.To.Node)
		}
		if !containsPort(dstNode.InputPorts, link.To.Name) {
			return nil, errkind.Configurationf("graph: node %q has no input port %q", link.To.Node, link.To.Name)
		}
		if seenInput[link.To] {
			return nil, errkind.Configurationf(
				"graph: input port %s.%s already has an inbound link", link.To.Node, link.To.Name)
		}
		seenInput[link.To] = true
		inbound[link.To] = link.From
		outbound[link.From] = append(outbound[link.From], link.To)
	}

	g := &Graph{
		nodes:     b.nodes,
		links:     append([]Link(nil), b.links...),
		inbound:   inbound,
		outbound:  outbound,
		declOrder: append([]string(nil), b.declOrder...),
	}

	order, err := topologicalOrder(g)
	if err != nil {
		return nil, err
	}
	computePhases(g, order)

	return g, nil
}

func (b *Builder) validateNodesAndLinks() error {
	for id, n := range b.nodes {
		if n.IsImplicit() {
			continue
		}
		if n.Sync == nil && n.Async == nil {
			return errkind.Configurationf("graph: node %q declares neither a sync nor async behavior", id)
		}
		if n.Sync != nil && n.Async != nil {
			return errkind.Configurationf("graph: node %q declares both sync and async behavior", id)
		}
	}
	return nil
}

func containsPort(ports []string, name string) bool {
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}

// topologicalOrder returns node IDs in a valid topological order over the
// link graph, or a Configuration error if the link graph has a cycle: the
// directed subgraph restricted to data dependencies must be acyclic.
func topologicalOrder(g *Graph) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.declOrder))
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return errkind.Configurationf("graph: cycle detected at node %q", id)
		}
		color[id] = gray
		node := g.nodes[id]
		for _, portName := range node.OutputPorts {
			for _, dst := range g.outbound[Port{Node: id, Name: portName}] {
				if err := visit(dst.Node); err != nil {
					return err
				}
			}
		}
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range g.declOrder {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	// order is currently in post-order (reverse topological); flip it.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// computePhases assigns each node the phase of its most-gated dependency:
// nodes transitively depending on service_response can only run in the
// response phase. order must be a valid topological order.
func computePhases(g *Graph, order []string) {
	phase := make(map[string]Phase, len(order))
	for _, id := range order {
		node := g.nodes[id]
		p := PhaseRequest
		if id == ServiceResponse || id == Response {
			p = PhaseResponse
		}
		for _, portName := range node.InputPorts {
			src, ok := g.inbound[Port{Node: id, Name: portName}]
			if !ok {
				continue
			}
			if dep := phase[src.Node]; dep > p {
				p = dep
			}
		}
		phase[id] = p
		node.Phase = p
	}
}
