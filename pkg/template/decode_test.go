package template

import "testing"

func TestDecodeTemplateSetSingleRecord(t *testing.T) {
	payload := []byte{
		0x01, 0x04, // template id 260
		0x00, 0x02, // field count 2
		0x00, 0x08, 0x00, 0x04, // field: id 8, length 4
		0x00, 0x0c, 0x00, 0x04, // field: id 12, length 4
	}

	named, err := DecodeTemplateSet(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(named) != 1 {
		t.Fatalf("expected 1 template, got %d", len(named))
	}
	if named[0].ID != 0x0104 {
		t.Errorf("got id %d, want 260", named[0].ID)
	}
	if len(named[0].Template.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(named[0].Template.Fields))
	}
	if named[0].Template.Fields[0] != (Field{PEN: 0, ID: 8, Length: 4}) {
		t.Errorf("unexpected field 0: %+v", named[0].Template.Fields[0])
	}
}

func TestDecodeTemplateSetEnterpriseField(t *testing.T) {
	payload := []byte{
		0x01, 0x05, // template id 261
		0x00, 0x01, // field count 1
		0x80, 0x01, 0x00, 0x04, // enterprise bit set, field id 1
		0x00, 0x00, 0x00, 0x09, // PEN 9
	}

	named, err := DecodeTemplateSet(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := named[0].Template.Fields[0]
	want := Field{PEN: 9, ID: 1, Length: 4}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeTemplateSetMultipleRecordsBackToBack(t *testing.T) {
	payload := []byte{
		0x01, 0x04, 0x00, 0x01, 0x00, 0x08, 0x00, 0x04,
		0x01, 0x05, 0x00, 0x01, 0x00, 0x0c, 0x00, 0x04,
	}
	named, err := DecodeTemplateSet(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(named) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(named))
	}
}

func TestDecodeTemplateSetTruncatedFieldErrors(t *testing.T) {
	payload := []byte{0x01, 0x04, 0x00, 0x01, 0x00, 0x08}
	if _, err := DecodeTemplateSet(payload); err == nil {
		t.Fatal("expected truncated field error")
	}
}

func TestDecodeOptionsTemplateSet(t *testing.T) {
	payload := []byte{
		0x02, 0x00, // template id 512
		0x00, 0x02, // field count 2
		0x00, 0x01, // scope field count 1
		0x00, 0x96, 0x00, 0x04, // scope field: applicationId (id 150 arbitrary here)
		0x00, 0x60, 0x00, 0x20, // option field: applicationName
	}
	named, err := DecodeOptionsTemplateSet(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(named) != 1 {
		t.Fatalf("expected 1 template, got %d", len(named))
	}
	tmpl := named[0].Template
	if !tmpl.IsOption {
		t.Error("expected IsOption true")
	}
	if tmpl.ScopeFieldCount != 1 {
		t.Errorf("got scope field count %d, want 1", tmpl.ScopeFieldCount)
	}
	if len(tmpl.Fields) != 2 {
		t.Fatalf("expected 2 total fields, got %d", len(tmpl.Fields))
	}
}

func TestDecodeOptionsTemplateSetInvalidScopeCountErrors(t *testing.T) {
	payload := []byte{
		0x02, 0x00,
		0x00, 0x01, // field count 1
		0x00, 0x02, // scope field count 2, greater than field count
	}
	if _, err := DecodeOptionsTemplateSet(payload); err == nil {
		t.Fatal("expected scope field count error")
	}
}
