package params

import (
	"reflect"
	"testing"
)

func TestParse_PreservesOrderAndNumbers(t *testing.T) {
	s, err := Parse([]byte(`{"zeta":1.50,"alpha":["a","b"],"mid":{"y":true,"x":null}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := s.Keys(), []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys=%v want %v", got, want)
	}
	v, _ := s.Get("zeta")
	if v.Kind() != KindNumber || v.Text() != "1.50" {
		t.Fatalf("number literal lost: kind=%v text=%q", v.Kind(), v.Text())
	}
	mid, _ := s.Get("mid")
	if got := mid.Object().Keys(); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Fatalf("nested keys=%v", got)
	}

	b, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if got := string(b); got != `{"zeta":1.50,"alpha":["a","b"],"mid":{"y":true,"x":null}}` {
		t.Fatalf("marshal=%s", got)
	}
}

func TestParse_RejectsNonObject(t *testing.T) {
	if _, err := Parse([]byte(`["a"]`)); err == nil {
		t.Fatal("expected error for array input")
	}
	if _, err := Parse([]byte(`{"a":`)); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestPut_ReplacesInPlace(t *testing.T) {
	s := NewSet().Put("a", Int(1)).Put("b", Int(2)).Put("a", Int(3))
	if got := s.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("keys=%v", got)
	}
	v, _ := s.Get("a")
	if v.Text() != "3" {
		t.Fatalf("a=%q want 3", v.Text())
	}
}

func TestPick_KeepsOnlyAllowedKeys(t *testing.T) {
	in, err := Parse([]byte(`{"keyword":"modis","secret":"x","page_num":2,"concept_id":["C1"]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	allowed := []string{"concept_id", "keyword", "page_num"}

	out := Pick(in, allowed)

	if got, want := out.Keys(), []string{"keyword", "page_num", "concept_id"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys=%v want %v", got, want)
	}
	for _, k := range out.Keys() {
		got, _ := out.Get(k)
		orig, _ := in.Get(k)
		if !reflect.DeepEqual(got, orig) {
			t.Fatalf("value for %q changed: %+v vs %+v", k, got, orig)
		}
	}
}

func TestPick_DoesNotMutateInput(t *testing.T) {
	in, _ := Parse([]byte(`{"a":1,"b":{"c":[1,2]}}`))
	before, _ := in.MarshalJSON()

	out := Pick(in, []string{"b"})
	b, _ := out.Get("b")
	b.Object().Put("c", String("changed"))

	after, _ := in.MarshalJSON()
	if string(before) != string(after) {
		t.Fatalf("input mutated:\nbefore %s\nafter  %s", before, after)
	}
	if in.Len() != 2 {
		t.Fatalf("input len=%d want 2", in.Len())
	}
}

func TestPick_NilInput(t *testing.T) {
	out := Pick(nil, []string{"a"})
	if out == nil || out.Len() != 0 {
		t.Fatalf("expected empty set, got %+v", out)
	}
}
