package research

import (
	"strings"
	"testing"
	"time"
)

func sampleResult(status Status) *Result {
	return &Result{
		Topic:   "Miranda rights",
		Status:  status,
		Summary: "The Miranda warning stems from Miranda v. Arizona.",
		Concepts: []ConceptEntry{
			{Name: "Miranda v. Arizona", Kind: KindPrinciple, SourceURL: "https://example.com/m"},
			{Name: "1966", Kind: KindDate, SourceURL: "https://example.com/m"},
		},
		Sources: []SourceRecord{
			{Title: "Ruling", URL: "https://example.com/m"},
		},
		History: []IterationRecord{
			{Index: 1, Query: "miranda", NewSources: 1, NewConcepts: 2, Verdict: Verdict{Continue: false, Reason: "criteria satisfied"}},
		},
		Iterations: 1,
		Duration:   3 * time.Second,
	}
}

func TestMarkdownReportContainsSections(t *testing.T) {
	report := sampleResult(StatusCompleted).MarkdownReport()

	for _, want := range []string{
		"# Research Report: Miranda rights",
		"## Synthesis",
		"## Key Concepts",
		"## Sources",
		"## Iteration Log",
		"Miranda v. Arizona",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(report, "partial") {
		t.Error("completed run must not be marked partial")
	}
}

func TestMarkdownReportMarksFailedRunPartial(t *testing.T) {
	report := sampleResult(StatusFailed).MarkdownReport()
	if !strings.Contains(report, "partial") {
		t.Error("failed run must be marked as partial")
	}
}

func TestStats(t *testing.T) {
	r := sampleResult(StatusCompleted)
	r.History = append(r.History, IterationRecord{
		Index: 2, Notes: []string{"search unavailable: timeout"},
		Verdict: Verdict{Continue: false, Reason: "budget exhausted"},
	})
	r.Iterations = 2

	stats := r.Stats()
	if stats.Iterations != 2 || stats.TotalSources != 1 || stats.TotalConcepts != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.DegradedPasses != 1 {
		t.Errorf("expected 1 degraded pass, got %d", stats.DegradedPasses)
	}
	if stats.FinalVerdictReason != "budget exhausted" {
		t.Errorf("expected final verdict reason, got %q", stats.FinalVerdictReason)
	}
}
