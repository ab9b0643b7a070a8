package coerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkengine/datakit/value"
)

func TestIsStructuredMediaType(t *testing.T) {
	cases := map[string]bool{
		"application/json":                  true,
		"application/json; charset=utf-8":   true,
		"application/vnd.api+json":          true,
		"text/plain":                        false,
		"application/octet-stream":          false,
		"":                                  false,
		"APPLICATION/JSON":                  true,
		"not a media type; at all; garbage": false,
	}
	for ct, want := range cases {
		assert.Equalf(t, want, IsStructuredMediaType(ct), "content type %q", ct)
	}
}

func TestDecodeBodyStructured(t *testing.T) {
	v := DecodeBody([]byte(`{"ok":true}`), "application/json")
	require.Equal(t, value.KindObject, v.Kind())
	field, ok := v.ObjectField("ok")
	require.True(t, ok)
	b, _ := field.Bool()
	assert.True(t, b)
}

func TestDecodeBodyFallsBackToRawOnBadJSON(t *testing.T) {
	v := DecodeBody([]byte(`not json`), "application/json")
	raw, ok := v.Raw()
	require.True(t, ok, "malformed JSON body should fall back to Raw")
	assert.Equal(t, "application/json", raw.ContentType)
}

func TestDecodeBodyNonStructuredStaysRaw(t *testing.T) {
	v := DecodeBody([]byte("hello"), "text/plain")
	raw, ok := v.Raw()
	require.True(t, ok)
	assert.Equal(t, "hello", string(raw.Bytes))
}

func TestEncodeBodyStructuredValue(t *testing.T) {
	v := value.Object(value.KV{Key: "a", Value: value.Number(1)})
	data, ct, err := EncodeBody(v, "")
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestEncodeBodyStringDefaultsToTextPlain(t *testing.T) {
	data, ct, err := EncodeBody(value.String("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWriteContentType, ct)
	assert.Equal(t, "hi", string(data))
}

func TestEncodeBodyStringKeepsExistingContentType(t *testing.T) {
	data, ct, err := EncodeBody(value.String("<a/>"), "application/xml")
	require.NoError(t, err)
	assert.Equal(t, "application/xml", ct)
	assert.Equal(t, "<a/>", string(data))
}

func TestEncodeBodyRawPassesThrough(t *testing.T) {
	raw := value.RawValue([]byte{1, 2, 3}, "application/octet-stream")
	data, ct, err := EncodeBody(raw, "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", ct)
	assert.Equal(t, []byte{1, 2, 3}, data)
}
