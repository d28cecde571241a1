package research

import (
	"context"
	"testing"
)

func conceptsJSON(entries string) string {
	return `{"concepts": [` + entries + `]}`
}

func TestExtractorClassifiesKinds(t *testing.T) {
	model := &scriptedModel{responses: []string{conceptsJSON(
		`{"name": "Miranda v. Arizona", "kind": "principle", "excerpt": "landmark ruling"},
		 {"name": "1966", "kind": "date", "excerpt": "decided in 1966"},
		 {"name": "custodial interrogation", "kind": "weird-kind", "excerpt": "questioning in custody"}`,
	)}}
	extractor := NewConceptExtractor(model, testLogger())

	entries := extractor.Extract(context.Background(), []SourceRecord{
		{Title: "Miranda", URL: "https://example.com/miranda", Excerpt: "..."},
	})
	if len(entries) != 3 {
		t.Fatalf("expected 3 concepts, got %d", len(entries))
	}
	if entries[0].Kind != KindPrinciple || entries[1].Kind != KindDate {
		t.Errorf("unexpected kinds: %q %q", entries[0].Kind, entries[1].Kind)
	}
	// Items that fit no kind are tagged other, never dropped.
	if entries[2].Kind != KindOther {
		t.Errorf("unfit kind should map to other, got %q", entries[2].Kind)
	}
	if entries[0].SourceURL != "https://example.com/miranda" {
		t.Errorf("source reference missing: %q", entries[0].SourceURL)
	}
}

func TestExtractorDegradesPerSource(t *testing.T) {
	// First source: three malformed responses exhaust the retries. Second
	// source: a clean response. The batch must not abort.
	model := &scriptedModel{responses: []string{
		"garbage", "garbage", "garbage",
		conceptsJSON(`{"name": "Fifth Amendment", "kind": "statute", "excerpt": "no person shall"}`),
	}}
	extractor := NewConceptExtractor(model, testLogger())

	entries := extractor.Extract(context.Background(), []SourceRecord{
		{Title: "Bad", URL: "https://example.com/bad", Excerpt: "..."},
		{Title: "Good", URL: "https://example.com/good", Excerpt: "..."},
	})
	if len(entries) != 1 {
		t.Fatalf("expected 1 concept from the surviving source, got %d", len(entries))
	}
	if entries[0].Name != "Fifth Amendment" || entries[0].SourceURL != "https://example.com/good" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestExtractorSkipsEmptyNames(t *testing.T) {
	model := &scriptedModel{responses: []string{conceptsJSON(
		`{"name": "  ", "kind": "term", "excerpt": "blank"},
		 {"name": "habeas corpus", "kind": "term", "excerpt": "writ"}`,
	)}}
	extractor := NewConceptExtractor(model, testLogger())

	entries := extractor.Extract(context.Background(), []SourceRecord{{URL: "https://example.com/x", Excerpt: "..."}})
	if len(entries) != 1 || entries[0].Name != "habeas corpus" {
		t.Fatalf("expected blank-name concept skipped, got %+v", entries)
	}
}

func TestExtractorEmptyBatch(t *testing.T) {
	extractor := NewConceptExtractor(&scriptedModel{}, testLogger())
	if entries := extractor.Extract(context.Background(), nil); len(entries) != 0 {
		t.Fatalf("expected no concepts for empty batch, got %d", len(entries))
	}
}
