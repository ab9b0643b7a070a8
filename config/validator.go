package config

import (
	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
)

// Validator performs structural validation ahead of graph construction.
// It intentionally does not perform JSON-Schema validation against a
// published schema — that layer is an external collaborator's job. It
// checks node ids (non-empty, unique, not reserved), per-kind required
// attributes, that every link names existing nodes, and that port names on
// links are non-empty (to_port only where it cannot be synthesized). Port
// existence on the nodes, the single-inbound-link rule, and acyclicity are
// not checked here; graph.Builder enforces them when Build compiles the
// Document.
type Validator struct{}

// NewValidator returns a Validator. It holds no state.
func NewValidator() *Validator { return &Validator{} }

// Validate runs every structural check and returns the first failure,
// wrapped as a Configuration-kind error.
func (v *Validator) Validate(doc *Document) error {
	if doc == nil {
		return errkind.Configurationf("config: document is nil")
	}
	if err := v.validateNodes(doc); err != nil {
		return err
	}
	if err := v.validateLinks(doc); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateNodes(doc *Document) error {
	seen := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return errkind.Configurationf("config: node id cannot be empty")
		}
		if graph.IsReserved(n.ID) {
			return errkind.Configurationf("config: node id %q is reserved for an implicit node", n.ID)
		}
		if seen[n.ID] {
			return errkind.Configurationf("config: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		if err := validateAttributes(n); err != nil {
			return err
		}
	}
	return nil
}

// validateAttributes enforces the per-kind required-attribute presence
// rules from the module contract: url for call, jq for jq, template for template.
func validateAttributes(n Node) error {
	attr := func(name string) (any, bool) {
		v, ok := n.Attributes[name]
		return v, ok
	}
	switch n.Type {
	case TypeCall:
		url, ok := attr("url")
		if !ok {
			return errkind.Configurationf("config: node %q: call requires attribute %q", n.ID, "url")
		}
		if _, isString := url.(string); !isString {
			return errkind.Configurationf("config: node %q: attribute %q must be a string", n.ID, "url")
		}
	case TypeJQ:
		query, ok := attr("jq")
		if !ok {
			return errkind.Configurationf("config: node %q: jq requires attribute %q", n.ID, "jq")
		}
		if _, isString := query.(string); !isString {
			return errkind.Configurationf("config: node %q: attribute %q must be a string", n.ID, "jq")
		}
	case TypeTemplate:
		tpl, ok := attr("template")
		if !ok {
			return errkind.Configurationf("config: node %q: template requires attribute %q", n.ID, "template")
		}
		if _, isString := tpl.(string); !isString {
			return errkind.Configurationf("config: node %q: attribute %q must be a string", n.ID, "template")
		}
	case TypeExit:
		// status is optional; no required attributes.
	default:
		return errkind.Configurationf("config: node %q: unknown node type %q", n.ID, n.Type)
	}
	return nil
}

func (v *Validator) validateLinks(doc *Document) error {
	nodeExists := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeExists[n.ID] = true
	}
	endpointExists := func(id string) bool {
		return nodeExists[id] || graph.IsReserved(id)
	}
	for i, l := range doc.Links {
		if !endpointExists(l.FromNode) {
			return errkind.Configurationf("config: link[%d]: source node %q does not exist", i, l.FromNode)
		}
		if !endpointExists(l.ToNode) {
			return errkind.Configurationf("config: link[%d]: destination node %q does not exist", i, l.ToNode)
		}
		if l.FromPort == "" {
			return errkind.Configurationf("config: link[%d]: from_port cannot be empty", i)
		}
		if l.ToPort == "" && !allowsSynthesizedPort(doc, l.ToNode) {
			return errkind.Configurationf(
				"config: link[%d]: to_port cannot be empty for node %q", i, l.ToNode)
		}
	}
	return nil
}

// allowsSynthesizedPort reports whether the destination node is a kind
// whose input ports may be synthesized from the link itself (jq/template).
func allowsSynthesizedPort(doc *Document, nodeID string) bool {
	for _, n := range doc.Nodes {
		if n.ID == nodeID {
			return n.Type == TypeJQ || n.Type == TypeTemplate
		}
	}
	return false
}
