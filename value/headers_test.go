package value

import "testing"

func TestHeadersToValueSingleAndMultiValued(t *testing.T) {
	h := NewHeaders()
	h.Add("Content-Type", "application/json")
	h.Add("X-Trace", "a")
	h.Add("X-Trace", "b")

	v := h.ToValue()
	ct, ok := v.ObjectField("content-type")
	if !ok {
		t.Fatal("expected canonical lowercase key \"content-type\"")
	}
	if s, _ := ct.Str(); s != "application/json" {
		t.Fatalf("expected single-valued header to stay a String, got %#v", ct)
	}

	trace, ok := v.ObjectField("x-trace")
	if !ok {
		t.Fatal("expected key \"x-trace\"")
	}
	items, ok := trace.ArrayItems()
	if !ok || len(items) != 2 {
		t.Fatalf("expected multi-valued header to become an Array, got %#v", trace)
	}
}

func TestHeadersFromValueRoundTrip(t *testing.T) {
	h := NewHeaders()
	h.Add("Accept", "text/plain")
	h.Add("X-Multi", "1")
	h.Add("X-Multi", "2")

	back, err := HeadersFromValue(h.ToValue())
	if err != nil {
		t.Fatalf("HeadersFromValue: %v", err)
	}
	if got, _ := back.Get("accept"); got != "text/plain" {
		t.Fatalf("expected accept=text/plain, got %q", got)
	}
	if got := back.Values("x-multi"); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestHeadersFromValueRejectsNonObject(t *testing.T) {
	if _, err := HeadersFromValue(String("not headers")); err == nil {
		t.Fatal("expected an error for a non-object value")
	}
}

func TestHeadersFromValueNullIsEmpty(t *testing.T) {
	h, err := HeadersFromValue(Null)
	if err != nil {
		t.Fatalf("HeadersFromValue(Null): %v", err)
	}
	if len(h.Names()) != 0 {
		t.Fatalf("expected no headers, got %v", h.Names())
	}
}
