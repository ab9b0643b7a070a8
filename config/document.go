// Package config implements configuration parsing, structural validation,
// and graph construction. Validation against a published JSON Schema is an
// external collaborator's job; the structural invariants enforced here
// (port-linking rules, reserved names, required attributes) are the layer
// schema validation cannot express.
package config

// Document is the parsed, not-yet-validated configuration for one DataKit
// filter instance: a flat node list and a link list, mirroring the graph's
// own shape.
type Document struct {
	Version string `json:"version" yaml:"version"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
	Links   []Link `json:"links" yaml:"links"`
}

// Node is one user-declared node: its kind, its attributes ("url", "method",
// "timeout", "jq", "template", "content_type", "status", depending on kind),
// and, for jq/template, its ordered output ports. Input ports for jq/template
// are derived from the links that target them, optionally seeded here for a
// node that declares ports before it has any links.
type Node struct {
	ID          string         `json:"id" yaml:"id"`
	Type        string         `json:"type" yaml:"type"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	InputPorts  []string       `json:"input_ports,omitempty" yaml:"input_ports,omitempty"`
	OutputPorts []string       `json:"output_ports,omitempty" yaml:"output_ports,omitempty"`
}

// Link is a directed edge from one node's output port to another's input
// port. ToPort may be left empty for a jq/template destination, in which
// case a name is synthesized from the source node/port.
type Link struct {
	FromNode string `json:"from_node" yaml:"from_node"`
	FromPort string `json:"from_port" yaml:"from_port"`
	ToNode   string `json:"to_node" yaml:"to_node"`
	ToPort   string `json:"to_port,omitempty" yaml:"to_port,omitempty"`
}

// Node type discriminators understood by Build.
const (
	TypeCall     = "call"
	TypeJQ       = "jq"
	TypeTemplate = "template"
	TypeExit     = "exit"
)
