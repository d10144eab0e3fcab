package template

import (
	"net"
	"testing"
)

func TestUpsertLookupReplacesAtomically(t *testing.T) {
	r := New()
	key := NewKey(net.ParseIP("10.0.0.1"), 256, 259)

	t1 := &Template{ID: 259, Fields: []Field{{PEN: 0, ID: 8, Length: 4}}}
	r.Upsert(key, t1)

	got, err := r.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(got.Fields))
	}

	t2 := &Template{ID: 259, Fields: []Field{{PEN: 0, ID: 8, Length: 4}, {PEN: 0, ID: 12, Length: 4}}}
	r.Upsert(key, t2)

	got, err = r.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("expected replaced template with 2 fields, got %d", len(got.Fields))
	}
}

func TestLookupMissingIsNotFound(t *testing.T) {
	r := New()
	_, err := r.Lookup(NewKey(net.ParseIP("10.0.0.1"), 256, 999))
	if _, ok := err.(ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestV5TemplateFixedLength(t *testing.T) {
	v5 := V5()
	if v5.HasVariableFields() {
		t.Fatal("v5 synthetic template must have no variable-length fields")
	}
	if len(v5.Fields) == 0 {
		t.Fatal("expected v5 template to carry fields")
	}
}
