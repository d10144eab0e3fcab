package sensors

import (
	"bytes"
	"testing"
)

func TestAppendEnrichmentSuffixIsDeterministicAndIdempotent(t *testing.T) {
	cfg := ObservationConfig{Enrichment: map[string]any{"pop": "ams1", "tier": "edge"}}
	obs := NewObservation(1, cfg)

	var first, second bytes.Buffer
	obs.AppendEnrichmentSuffix(&first)
	obs.AppendEnrichmentSuffix(&second)

	if first.String() != second.String() {
		t.Fatalf("expected identical output across calls, got %q vs %q", first.String(), second.String())
	}
	want := `,"pop":"ams1","tier":"edge"`
	if first.String() != want {
		t.Errorf("got %q, want %q", first.String(), want)
	}
}

func TestAppendEnrichmentSuffixEmptyWritesNothing(t *testing.T) {
	obs := NewObservation(1, ObservationConfig{})
	var buf bytes.Buffer
	obs.AppendEnrichmentSuffix(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected no bytes written for empty enrichment, got %q", buf.String())
	}
}
