// Copyright 2025 Certen Protocol

package canon

import "testing"

func TestMarshal_KeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	b := map[string]interface{}{"c": 3, "a": 2, "b": 1}

	outA, err := Marshal(a)
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	outB, err := Marshal(b)
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if string(outA) != string(outB) {
		t.Errorf("expected identical canonical output, got %s vs %s", outA, outB)
	}
}

func TestMarshal_NestedObjects(t *testing.T) {
	v := map[string]interface{}{
		"z": map[string]interface{}{"y": 1, "x": 2},
		"a": []interface{}{3, 2, 1},
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":[3,2,1],"z":{"x":2,"y":1}}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHashHex_Deterministic(t *testing.T) {
	v1 := map[string]interface{}{"x": 1, "y": 2}
	v2 := map[string]interface{}{"y": 2, "x": 1}

	h1, err := HashHex(v1)
	if err != nil {
		t.Fatalf("hash v1: %v", err)
	}
	h2, err := HashHex(v2)
	if err != nil {
		t.Fatalf("hash v2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected equal hashes, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}
