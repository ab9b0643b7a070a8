package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
version: "1"
name: enrich-and-rewrite
nodes:
  - id: fetch_profile
    type: call
    attributes:
      url: https://profile.internal/lookup
      method: GET
  - id: merge
    type: jq
    attributes:
      jq: '{"name": fetch_profile_body.name, "original": request_body.id}'
    output_ports: ["merged"]
links:
  - from_node: request
    from_port: body
    to_node: fetch_profile
    to_port: body
  - from_node: fetch_profile
    from_port: body
    to_node: merge
  - from_node: request
    from_port: body
    to_node: merge
  - from_node: merge
    from_port: merged
    to_node: response
    to_port: body
`

func TestParseYAMLAndBuild(t *testing.T) {
	doc, err := NewParser().ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)

	g, err := Build(doc)
	require.NoError(t, err)

	node, ok := g.Node("merge")
	require.True(t, ok)
	assert.Contains(t, node.InputPorts, "fetch_profile_body")
	assert.Contains(t, node.InputPorts, "request_body")
}

func TestValidateRejectsReservedNodeID(t *testing.T) {
	doc := &Document{Nodes: []Node{{ID: "request", Type: TypeExit}}}
	err := NewValidator().Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsMissingRequiredAttribute(t *testing.T) {
	doc := &Document{Nodes: []Node{{ID: "a", Type: TypeCall}}}
	err := NewValidator().Validate(doc)
	assert.ErrorContains(t, err, "url")
}

func TestValidateRejectsDanglingLinkEndpoint(t *testing.T) {
	doc := &Document{
		Nodes: []Node{{ID: "a", Type: TypeExit}},
		Links: []Link{{FromNode: "missing", FromPort: "body", ToNode: "a", ToPort: "body"}},
	}
	err := NewValidator().Validate(doc)
	assert.ErrorContains(t, err, "missing")
}

func TestBuildRejectsDuplicateInboundLink(t *testing.T) {
	doc := &Document{
		Nodes: []Node{{ID: "a", Type: TypeExit}},
		Links: []Link{
			{FromNode: "request", FromPort: "body", ToNode: "a", ToPort: "body"},
			{FromNode: "request", FromPort: "headers", ToNode: "a", ToPort: "body"},
		},
	}
	_, err := Build(doc)
	assert.Error(t, err)
}
