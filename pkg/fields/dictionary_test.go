package fields

import (
	"testing"

	"github.com/flowforge/flowforge/pkg/handlers"
)

func TestLookupCoreQuintuple(t *testing.T) {
	cases := []struct {
		pen  uint32
		id   uint16
		key  string
		tag  handlers.Tag
	}{
		{0, 8, "src", handlers.SaveIPv4Src},
		{0, 12, "dst", handlers.SaveIPv4Dst},
		{0, 7, "src_port", handlers.PrintPort},
		{0, 11, "dst_port", handlers.PrintPort},
		{0, 4, "l4_proto", handlers.PrintProtoName},
	}
	for _, c := range cases {
		e, ok := Lookup(c.pen, c.id)
		if !ok {
			t.Fatalf("expected entry for (%d,%d)", c.pen, c.id)
		}
		if e.JSONKey != c.key {
			t.Errorf("(%d,%d): got key %q, want %q", c.pen, c.id, e.JSONKey, c.key)
		}
		if e.Handler != c.tag {
			t.Errorf("(%d,%d): got handler %v, want %v", c.pen, c.id, e.Handler, c.tag)
		}
	}
}

func TestLookupMissingField(t *testing.T) {
	if _, ok := Lookup(0, 0xDEAD); ok {
		t.Fatal("expected unassigned field id to miss")
	}
}

func TestPostMacFieldsHaveNoOutputKey(t *testing.T) {
	for _, id := range []uint16{81, 57} {
		e, ok := Lookup(0, id)
		if !ok {
			t.Fatalf("expected entry for post-mac field %d", id)
		}
		if e.JSONKey != "" {
			t.Errorf("field %d: expected no output key, got %q", id, e.JSONKey)
		}
		if !handlers.IsSaveOnly(e.Handler) {
			t.Errorf("field %d: expected save-only handler", id)
		}
	}
}
