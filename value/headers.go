package value

import "strings"

// Headers is a case-insensitive multimap from header name to an ordered
// list of values, matching the canonical representation: keys are
// normalized to lowercase and exposed to the engine as a V::Object whose
// values are either a single String or an Array(String).
type Headers struct {
	values map[string][]string
	order  []string // canonical lowercase keys in first-seen order.
}

// NewHeaders returns an empty header multimap.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func canonical(name string) string { return strings.ToLower(name) }

// Add appends a value for name, preserving any existing values.
func (h *Headers) Add(name, val string) {
	key := canonical(name)
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}
	h.values[key] = append(h.values[key], val)
}

// Set replaces all values for name with the single value val.
func (h *Headers) Set(name, val string) {
	key := canonical(name)
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}
	h.values[key] = []string{val}
}

// Get returns the first value for name, if any.
func (h *Headers) Get(name string) (string, bool) {
	vs, ok := h.values[canonical(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Values returns all values for name in insertion order.
func (h *Headers) Values(name string) []string {
	return h.values[canonical(name)]
}

// Names returns the canonical (lowercase) header names in first-seen order.
func (h *Headers) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// ToValue converts the multimap into the V::Object representation described
// in : single-valued headers become String, multi-valued
// headers become Array(String).
func (h *Headers) ToValue() V {
	pairs := make([]KV, 0, len(h.order))
	for _, key := range h.order {
		vs := h.values[key]
		if len(vs) == 1 {
			pairs = append(pairs, KV{Key: key, Value: String(vs[0])})
			continue
		}
		items := make([]V, len(vs))
		for i, s := range vs {
			items[i] = String(s)
		}
		pairs = append(pairs, KV{Key: key, Value: Array(items...)})
	}
	return Object(pairs...)
}

// HeadersFromValue converts a V::Object (as produced by ToValue, or
// constructed by a jq/template node) back into a header multimap. Keys are
// re-canonicalized defensively in case the producing node used mixed case.
func HeadersFromValue(v V) (*Headers, error) {
	h := NewHeaders()
	if v.IsNull() {
		return h, nil
	}
	if v.Kind() != KindObject {
		return nil, errHeadersNotObject(v.Kind())
	}
	for _, key := range v.ObjectKeys() {
		field, _ := v.ObjectField(key)
		switch field.Kind() {
		case KindString:
			s, _ := field.Str()
			h.Add(key, s)
		case KindArray:
			items, _ := field.ArrayItems()
			for _, item := range items {
				s, ok := item.Str()
				if !ok {
					return nil, errHeaderValueNotString(key)
				}
				h.Add(key, s)
			}
		case KindNull:
			// A null-valued header field publishes no values; skip it.
		default:
			return nil, errHeaderValueNotString(key)
		}
	}
	return h, nil
}
