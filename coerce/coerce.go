// Package coerce implements content-type-aware body encoding/decoding at
// the proxy boundary: recognized JSON media types decode
// to structured values, everything else stays Raw.
package coerce

import (
	"mime"
	"strings"

	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/value"
)

// DefaultWriteContentType is what a written String value gets when the
// outbound Content-Type isn't already set.
const DefaultWriteContentType = "text/plain"

// jsonContentType is the canonical type used when encoding structured
// values and when none of the recognized variants applies literally.
const jsonContentType = "application/json"

// IsStructuredMediaType reports whether contentType is a recognized JSON
// media type: exactly "application/json", or any "*+json"
// suffixed variant (e.g. "application/vnd.api+json").
func IsStructuredMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == jsonContentType || strings.HasSuffix(mediaType, "+json")
}

// DecodeBody implements the body-port read rule: if
// Content-Type is a recognized JSON media type, decode to a structured V;
// otherwise wrap the bytes as Raw with their content type. Decode failure
// on a nominally-JSON body is not fatal — it falls back to Raw, matching
// the "coercion failures are recoverable" guidance.
func DecodeBody(data []byte, contentType string) value.V {
	if IsStructuredMediaType(contentType) {
		if v, err := value.FromJSON(data); err == nil {
			return v
		}
	}
	return value.RawValue(data, contentType)
}

// EncodeBody implements the body-port write rule: structured
// values serialize as JSON with application/json; Raw values pass through
// verbatim with their own content type; String values default to
// text/plain unless existingContentType already names something else.
// It returns the encoded bytes and the content type to set.
func EncodeBody(v value.V, existingContentType string) ([]byte, string, error) {
	if raw, ok := v.Raw(); ok {
		return raw.Bytes, raw.ContentType, nil
	}
	if s, ok := v.Str(); ok && existingContentType != "" {
		return []byte(s), existingContentType, nil
	}
	if s, ok := v.Str(); ok {
		return []byte(s), DefaultWriteContentType, nil
	}
	data, err := v.ToJSON()
	if err != nil {
		return nil, "", errkind.Coercionf("coerce: encode body: %v", err)
	}
	return data, jsonContentType, nil
}
