package graph

// Graph is the static, validated node/link structure built once per
// configuration. All lookups are constant-time via the
// adjacency indices built in Builder.Build.
type Graph struct {
	nodes map[string]*Node
	links []Link

	// inbound maps an input port to its single source output port, if any.
	inbound map[Port]Port
	// outbound maps an output port to its destination input ports.
	outbound map[Port][]Port
	// declOrder preserves node declaration order for deterministic
	// tie-breaking among simultaneously ready nodes.
	declOrder []string
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.declOrder))
	for i, id := range g.declOrder {
		out[i] = g.nodes[id]
	}
	return out
}

// Links returns every link in the graph.
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}

// SourceOf returns the output port feeding the given input port, if linked.
func (g *Graph) SourceOf(in Port) (Port, bool) {
	p, ok := g.inbound[in]
	return p, ok
}

// DestinationsOf returns the input ports fed by the given output port.
func (g *Graph) DestinationsOf(out Port) []Port {
	return g.outbound[out]
}
