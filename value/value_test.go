package value

import "testing"

func TestJSONRoundTrip(t *testing.T) {
	original := Object(
		KV{Key: "name", Value: String("ada")},
		KV{Key: "age", Value: Number(36)},
		KV{Key: "tags", Value: Array(String("x"), String("y"))},
		KV{Key: "active", Value: Bool(true)},
		KV{Key: "note", Value: Null},
	)

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !Equal(original, decoded) {
		t.Fatalf("round trip mismatch: got %#v", decoded)
	}
}

func TestEqualIgnoresObjectFieldOrder(t *testing.T) {
	a := Object(KV{Key: "a", Value: Number(1)}, KV{Key: "b", Value: Number(2)})
	b := Object(KV{Key: "b", Value: Number(2)}, KV{Key: "a", Value: Number(1)})
	if !Equal(a, b) {
		t.Fatal("expected objects with different field order to be equal")
	}
}

func TestRawToJSONRejected(t *testing.T) {
	raw := RawValue([]byte("not json"), "text/plain")
	if _, err := raw.ToJSON(); err == nil {
		t.Fatal("expected ToJSON to reject a raw value")
	}
}

func TestToAnyConvertsRawToString(t *testing.T) {
	raw := RawValue([]byte("hello"), "text/plain")
	got, ok := raw.ToAny().(string)
	if !ok || got != "hello" {
		t.Fatalf("expected raw value to convert to string \"hello\", got %#v", raw.ToAny())
	}
}

func TestFromAnyHandlesJSONNumber(t *testing.T) {
	v, err := FromJSON([]byte(`{"count": 42}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	count, ok := v.ObjectField("count")
	if !ok {
		t.Fatal("expected field \"count\"")
	}
	n, ok := count.Number()
	if !ok || n != 42 {
		t.Fatalf("expected number 42, got %#v", count)
	}
}
