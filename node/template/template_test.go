package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkengine/datakit/graph"
	"github.com/dkengine/datakit/value"
)

func TestExecuteDefaultsToTextPlain(t *testing.T) {
	n, err := New([]string{"name"}, "hello {{.name}}", "")
	require.NoError(t, err)

	res, err := n.Execute(context.Background(), graph.Inputs{"name": value.String("ada")})
	require.NoError(t, err)

	raw, ok := res.Outputs["output"].Raw()
	require.True(t, ok)
	assert.Equal(t, "hello ada", string(raw.Bytes))
	assert.Equal(t, "text/plain", raw.ContentType)
}

func TestExecuteStructuredContentTypeParsesJSON(t *testing.T) {
	n, err := New([]string{"name"}, `{"greeting": "hi {{.name}}"}`, "application/json")
	require.NoError(t, err)

	res, err := n.Execute(context.Background(), graph.Inputs{"name": value.String("ada")})
	require.NoError(t, err)

	assert.Equal(t, value.KindObject, res.Outputs["output"].Kind())
	field, ok := res.Outputs["output"].ObjectField("greeting")
	require.True(t, ok)
	s, _ := field.Str()
	assert.Equal(t, "hi ada", s)
}

func TestExecuteFallsBackToRawOnInvalidJSON(t *testing.T) {
	n, err := New([]string{"name"}, `{greeting: {{.name}}}`, "application/json")
	require.NoError(t, err)

	res, err := n.Execute(context.Background(), graph.Inputs{"name": value.String("ada")})
	require.NoError(t, err)

	raw, ok := res.Outputs["output"].Raw()
	require.True(t, ok, "malformed JSON render should fall back to Raw")
	assert.Equal(t, "application/json", raw.ContentType)
}

func TestNewRejectsBadTemplateSyntax(t *testing.T) {
	_, err := New(nil, "{{ .unterminated", "")
	assert.Error(t, err)
}
