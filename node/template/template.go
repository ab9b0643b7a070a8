// Package template implements the `template` transformation node kind:
// renders a text/template against named input ports and coerces the
// rendered string per its declared content type.
package template

import (
	"bytes"
	"context"
	"text/template"

	"github.com/dkengine/datakit/coerce"
	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/value"
)

const outputPort = "output"

// Node is a compiled `template` node, parsed once per configuration and
// shared read-only across requests.
type Node struct {
	inputPorts  []string
	tpl         *template.Template
	contentType string
}

// New parses templateSource and returns the node kind. contentType
// defaults to text/plain if empty.
func New(inputPorts []string, templateSource, contentType string) (*Node, error) {
	if contentType == "" {
		contentType = coerce.DefaultWriteContentType
	}
	tpl, err := template.New("template").Parse(templateSource)
	if err != nil {
		return nil, errkind.Configurationf("template: parse: %v", err)
	}
	return &Node{
		inputPorts:  append([]string(nil), inputPorts...),
		tpl:         tpl,
		contentType: contentType,
	}, nil
}

// InputPorts implements graph.SyncKind.
func (n *Node) InputPorts() []string { return n.inputPorts }

// OutputPorts implements graph.SyncKind. template has a single fixed
// output port.
func (n *Node) OutputPorts() []string { return []string{outputPort} }

// Execute implements graph.SyncKind.
func (n *Node) Execute(_ context.Context, inputs graph.Inputs) (graph.Result, error) {
	data := make(map[string]any, len(inputs))
	for port, v := range inputs {
		data[port] = v.ToAny()
	}

	var buf bytes.Buffer
	if err := n.tpl.Execute(&buf, data); err != nil {
		return graph.Result{}, errkind.Evaluationf("template: render: %v", err)
	}
	rendered := buf.String()

	var out value.V
	if coerce.IsStructuredMediaType(n.contentType) {
		parsed, err := value.FromJSON([]byte(rendered))
		if err != nil {
			out = value.RawValue([]byte(rendered), n.contentType)
		} else {
			out = parsed
		}
	} else {
		out = value.RawValue([]byte(rendered), n.contentType)
	}

	return graph.Result{Outputs: map[string]value.V{outputPort: out}}, nil
}
