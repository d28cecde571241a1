package research

import (
	"context"
	"errors"
	"testing"
)

func TestExecutorFiltersSeenSources(t *testing.T) {
	tool := &fakeSearch{batches: [][]SourceRecord{{
		{Title: "A", URL: "https://example.com/a", Excerpt: "alpha"},
		{Title: "B", URL: "https://example.com/b", Excerpt: "beta"},
	}}}
	executor := NewSearchExecutor(tool, testLogger())

	seen := map[string]bool{NormalizeURL("https://example.com/a"): true}
	fresh, err := executor.Execute(context.Background(), "query", seen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 1 || fresh[0].URL != "https://example.com/b" {
		t.Fatalf("expected only the unseen source, got %+v", fresh)
	}
	if fresh[0].Query != "query" {
		t.Errorf("expected retrieval query stamped on record, got %q", fresh[0].Query)
	}
}

func TestExecutorCollapsesURLVariants(t *testing.T) {
	tool := &fakeSearch{batches: [][]SourceRecord{{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "A again", URL: "https://example.com/a/"},
		{Title: "A tracked", URL: "https://example.com/a?utm=1"},
	}}}
	executor := NewSearchExecutor(tool, testLogger())

	fresh, err := executor.Execute(context.Background(), "q", map[string]bool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected variants collapsed to one record, got %d", len(fresh))
	}
}

func TestExecutorEmptyResultIsNotAnError(t *testing.T) {
	executor := NewSearchExecutor(&fakeSearch{}, testLogger())

	fresh, err := executor.Execute(context.Background(), "q", map[string]bool{})
	if err != nil {
		t.Fatalf("zero results must not be an error, got %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("expected empty sequence, got %d", len(fresh))
	}
}

func TestExecutorWrapsToolFailure(t *testing.T) {
	executor := NewSearchExecutor(brokenSearch{}, testLogger())

	_, err := executor.Execute(context.Background(), "q", map[string]bool{})
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}
