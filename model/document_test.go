package model

import "testing"

func TestIsRef(t *testing.T) {
	cases := []struct {
		name string
		v    map[string]interface{}
		want bool
	}{
		{"valid", map[string]interface{}{"type": "REF", "entity": "post", "id": float64(7)}, true},
		{"wrong type tag", map[string]interface{}{"type": "OTHER", "entity": "post", "id": float64(7)}, false},
		{"missing entity", map[string]interface{}{"type": "REF", "id": float64(7)}, false},
		{"missing id", map[string]interface{}{"type": "REF", "entity": "post"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsRef(c.v); got != c.want {
				t.Errorf("IsRef(%v) = %v, want %v", c.v, got, c.want)
			}
		})
	}
}

func TestAsRef(t *testing.T) {
	m := map[string]interface{}{"type": "REF", "entity": "post", "id": float64(7)}
	r := AsRef(m)
	if r.Entity != "post" || r.ID != 7 {
		t.Fatalf("AsRef = %+v", r)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		v    interface{}
		want Kind
	}{
		{nil, KindNull},
		{true, KindBool},
		{"x", KindString},
		{float64(3), KindInt},
		{float64(3.5), KindFloat},
		{[]interface{}{1, 2}, KindArray},
		{map[string]interface{}{"a": 1}, KindObject},
		{map[string]interface{}{"type": "REF", "entity": "e", "id": float64(1)}, KindRef},
	}
	for _, c := range cases {
		if got := KindOf(c.v); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestCompareNumeric(t *testing.T) {
	if Compare(float64(1), float64(2)) >= 0 {
		t.Fatal("expected 1 < 2")
	}
	if Compare(float64(2), float64(2)) != 0 {
		t.Fatal("expected 2 == 2")
	}
}

func TestCompareStringCaseInsensitive(t *testing.T) {
	if Compare("Banana", "apple") <= 0 {
		t.Fatal("expected Banana > apple case-insensitively")
	}
	if Compare("abc", "ABC") != 0 {
		t.Fatal("expected case-insensitive equality")
	}
}

func TestCloneDocumentIsDeep(t *testing.T) {
	doc := Document{"nested": map[string]interface{}{"a": 1}}
	clone := CloneDocument(doc)
	clone["nested"].(map[string]interface{})["a"] = 2
	if doc["nested"].(map[string]interface{})["a"] != 1 {
		t.Fatal("clone mutated original")
	}
}

func TestIDOf(t *testing.T) {
	doc := Document{"id": float64(42)}
	id, ok := IDOf(doc)
	if !ok || id != 42 {
		t.Fatalf("IDOf = %v, %v", id, ok)
	}
}
