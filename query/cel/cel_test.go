package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkengine/datakit/value"
)

func TestEvalFieldProjection(t *testing.T) {
	q, err := Compile(`body.name`, []string{"body"})
	require.NoError(t, err)

	body := value.Object(value.KV{Key: "name", Value: value.String("ada")})
	out, err := q.Eval(map[string]value.V{"body": body})
	require.NoError(t, err)

	name, ok := out.Str()
	require.True(t, ok)
	assert.Equal(t, "ada", name)
}

func TestEvalBuildsObjectFromMultipleInputs(t *testing.T) {
	q, err := Compile(`{"merged": a.x + b.y}`, []string{"a", "b"})
	require.NoError(t, err)

	a := value.Object(value.KV{Key: "x", Value: value.Number(1)})
	b := value.Object(value.KV{Key: "y", Value: value.Number(2)})
	out, err := q.Eval(map[string]value.V{"a": a, "b": b})
	require.NoError(t, err)

	merged, ok := out.ObjectField("merged")
	require.True(t, ok)
	n, _ := merged.Number()
	assert.Equal(t, float64(3), n)
}

func TestCompileRejectsEmptyExpression(t *testing.T) {
	_, err := Compile("", []string{"body"})
	assert.Error(t, err)
}

func TestCompileRejectsTypeErrors(t *testing.T) {
	_, err := Compile(`body + 1`, []string{"other"})
	assert.Error(t, err, "body is not a declared variable for this query")
}
