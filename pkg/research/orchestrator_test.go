package research

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func mirandaSources() []SourceRecord {
	return []SourceRecord{
		{Title: "Miranda v. Arizona", URL: "https://supremecourt.example.gov/miranda", Excerpt: "landmark 1966 ruling"},
		{Title: "Miranda rights explained", URL: "https://lawreview.example.edu/miranda-rights", Excerpt: "custodial interrogation"},
		{Title: "History of the warning", URL: "https://archive.example.org/warning-history", Excerpt: "fifth amendment roots"},
	}
}

func testLoopConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = 5
	cfg.DepthWindow = 1
	cfg.MinDomains = 3
	cfg.MinConceptKinds = 1
	return cfg
}

// newTestOrchestrator wires scripted models per component so each test can
// control them independently.
func newTestOrchestrator(planner *scriptedModel, tool SearchTool, extractor, integrator *scriptedModel, cfg Config) *Orchestrator {
	o := NewOrchestrator(planner, tool, cfg, testLogger())
	o.Extractor.Model = extractor
	o.Integrator.Model = integrator
	o.Assessor = NewCompletenessAssessor(nil, cfg, testLogger())
	return o
}

func TestRunStopsWhenNoNewSources(t *testing.T) {
	// Three sources on query 1, nothing new on query 2: the assessor sees
	// newSourceCount == 0 on iteration 2 and, with the other criteria met,
	// stops.
	planner := &scriptedModel{responses: []string{
		queryJSON("miranda rights history"),
		queryJSON("miranda v arizona ruling"),
	}}
	tool := &fakeSearch{batches: [][]SourceRecord{mirandaSources(), mirandaSources()}}
	extractor := &scriptedModel{responses: []string{
		conceptsJSON(`{"name": "Miranda v. Arizona", "kind": "principle", "excerpt": "landmark ruling"}`),
		conceptsJSON(`{"name": "1966", "kind": "date", "excerpt": "decided 1966"}`),
		conceptsJSON(`{"name": "Fifth Amendment", "kind": "statute", "excerpt": "self-incrimination"}`),
	}}
	integrator := &scriptedModel{responses: []string{
		"The Miranda warning stems from Miranda v. Arizona, decided in 1966 under the Fifth Amendment.",
	}}

	o := newTestOrchestrator(planner, tool, extractor, integrator, testLoopConfig())
	result, err := o.Run(context.Background(), "Miranda rights history")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != StatusCompleted {
		t.Errorf("expected completed run, got %q", result.Status)
	}
	if result.Iterations != 2 || len(result.History) != 2 {
		t.Fatalf("expected 2 iterations with 2 records, got %d/%d", result.Iterations, len(result.History))
	}
	if result.History[1].NewSources != 0 {
		t.Errorf("iteration 2 must report zero new sources, got %d", result.History[1].NewSources)
	}
	if result.History[1].Verdict.Continue {
		t.Errorf("expected stop verdict on iteration 2, got %+v", result.History[1].Verdict)
	}
	if len(result.Sources) != 3 {
		t.Errorf("expected 3 unique sources, got %d", len(result.Sources))
	}
}

func TestRunIterationCountMatchesHistory(t *testing.T) {
	planner := &scriptedModel{responses: []string{
		queryJSON("q one"), queryJSON("q two"), queryJSON("q three"),
	}}
	tool := &fakeSearch{batches: [][]SourceRecord{mirandaSources()}}
	extractor := &scriptedModel{responses: []string{
		conceptsJSON(`{"name": "Miranda v. Arizona", "kind": "principle", "excerpt": "ruling"}`),
		conceptsJSON(`{"name": "1966", "kind": "date", "excerpt": "date"}`),
		conceptsJSON(`{"name": "Fifth Amendment", "kind": "statute", "excerpt": "statute"}`),
	}}
	integrator := &scriptedModel{responses: []string{"synthesis one"}}

	var snapshots []ResearchState
	o := newTestOrchestrator(planner, tool, extractor, integrator, testLoopConfig())
	o.OnIteration = func(state ResearchState) {
		snapshots = append(snapshots, state)
	}

	result, err := o.Run(context.Background(), "Miranda rights")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != len(result.History) {
		t.Fatalf("iteration count %d != history length %d", result.Iterations, len(result.History))
	}
	if len(snapshots) != len(result.History) {
		t.Fatalf("expected one snapshot per iteration, got %d/%d", len(snapshots), len(result.History))
	}
	for _, snap := range snapshots {
		if snap.Iteration != len(snap.History) {
			t.Errorf("snapshot invariant broken: iteration %d, history %d", snap.Iteration, len(snap.History))
		}
	}
}

func TestRunSingleIterationBudget(t *testing.T) {
	cfg := testLoopConfig()
	cfg.MaxIterations = 1

	planner := &scriptedModel{responses: []string{queryJSON("only query")}}
	tool := &fakeSearch{batches: [][]SourceRecord{mirandaSources()}}
	extractor := &scriptedModel{responses: []string{
		conceptsJSON(`{"name": "a", "kind": "term", "excerpt": "x"}`),
		conceptsJSON(`{"name": "b", "kind": "term", "excerpt": "y"}`),
		conceptsJSON(`{"name": "c", "kind": "term", "excerpt": "z"}`),
	}}
	integrator := &scriptedModel{responses: []string{"first synthesis"}}

	o := newTestOrchestrator(planner, tool, extractor, integrator, cfg)
	result, err := o.Run(context.Background(), "any topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.History) != 1 {
		t.Fatalf("maxIterations=1 must yield exactly one record, got %d", len(result.History))
	}
	if result.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", result.Status)
	}
	if !strings.Contains(result.History[0].Verdict.Reason, "budget") {
		t.Errorf("expected budget reason, got %q", result.History[0].Verdict.Reason)
	}
}

func TestRunSearchRetrySucceeds(t *testing.T) {
	cfg := testLoopConfig()
	cfg.MaxIterations = 1

	planner := &scriptedModel{responses: []string{queryJSON("q")}}
	tool := &flakySearch{failures: 1, results: mirandaSources()[:2]}
	extractor := &scriptedModel{responses: []string{
		conceptsJSON(`{"name": "a", "kind": "term", "excerpt": "x"}`),
		conceptsJSON(`{"name": "b", "kind": "term", "excerpt": "y"}`),
	}}
	integrator := &scriptedModel{responses: []string{"synthesis"}}

	o := newTestOrchestrator(planner, tool, extractor, integrator, cfg)
	result, err := o.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := result.History[0]
	if rec.NewSources != 2 {
		t.Errorf("record must reflect the retried, successful search, got %d new sources", rec.NewSources)
	}
	for _, note := range rec.Notes {
		if strings.Contains(note, "search unavailable") {
			t.Errorf("successful retry must not be noted as unavailable: %q", note)
		}
	}
	if tool.calls != 2 {
		t.Errorf("expected exactly one retry (2 calls), got %d", tool.calls)
	}
}

func TestRunSearchHardUnavailableFailsWithPartialState(t *testing.T) {
	planner := &scriptedModel{responses: []string{queryJSON("q one"), queryJSON("q two")}}
	o := newTestOrchestrator(planner, brokenSearch{}, &scriptedModel{}, &scriptedModel{}, testLoopConfig())

	result, err := o.Run(context.Background(), "topic")
	if err == nil {
		t.Fatal("expected error after repeated search unavailability")
	}
	if result == nil {
		t.Fatal("a failed run must still return partial state")
	}
	if result.Status != StatusFailed {
		t.Errorf("expected failed status, got %q", result.Status)
	}
	if len(result.History) != 2 || result.Iterations != 2 {
		t.Fatalf("expected 2 recorded no-op passes, got %d/%d", len(result.History), result.Iterations)
	}
	if len(result.History[0].Notes) == 0 {
		t.Error("no-op pass must carry an unavailability note")
	}
}

func TestRunPlanningHardUnavailableFailsWithPartialState(t *testing.T) {
	o := NewOrchestrator(failingModel{err: errors.New("llm down")}, &fakeSearch{}, testLoopConfig(), testLogger())
	o.Assessor = NewCompletenessAssessor(nil, testLoopConfig(), testLogger())

	result, err := o.Run(context.Background(), "topic")
	if err == nil {
		t.Fatal("expected error after repeated planning unavailability")
	}
	if result.Status != StatusFailed {
		t.Errorf("expected failed status, got %q", result.Status)
	}
	if result.Iterations != len(result.History) {
		t.Errorf("invariant broken on failure path: %d/%d", result.Iterations, len(result.History))
	}
}

func TestRunCancelledBeforeIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(&scriptedModel{}, &fakeSearch{}, &scriptedModel{}, &scriptedModel{}, testLoopConfig())
	result, err := o.Run(ctx, "topic")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Iterations != 0 || len(result.History) != 0 {
		t.Fatalf("no iteration may begin after cancellation, got %+v", result)
	}
}

func TestRunEmptyTopic(t *testing.T) {
	o := newTestOrchestrator(&scriptedModel{}, &fakeSearch{}, &scriptedModel{}, &scriptedModel{}, testLoopConfig())
	if _, err := o.Run(context.Background(), "   "); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestRunBoundedTerminationAndConceptEnrichment(t *testing.T) {
	// Criteria impossible to satisfy: the loop must still end at the
	// iteration budget. Along the way, a concept re-extracted with a richer
	// excerpt in iteration 3 must end up as a single enriched entry.
	cfg := testLoopConfig()
	cfg.MaxIterations = 3
	cfg.MinDomains = 100

	planner := &scriptedModel{responses: []string{
		queryJSON("angle one"), queryJSON("angle two"), queryJSON("angle three"),
	}}
	tool := &fakeSearch{batches: [][]SourceRecord{
		{{Title: "S1", URL: "https://a.example.com/1", Excerpt: "first"}},
		{{Title: "S2", URL: "https://b.example.com/2", Excerpt: "second"}},
		{{Title: "S3", URL: "https://c.example.com/3", Excerpt: "third"}},
	}}
	extractor := &scriptedModel{responses: []string{
		conceptsJSON(`{"name": "Miranda v. Arizona", "kind": "principle", "excerpt": "short"}`),
		conceptsJSON(`{"name": "1966", "kind": "date", "excerpt": "decided"}`),
		conceptsJSON(`{"name": "Miranda v. Arizona", "kind": "principle", "excerpt": "a much richer excerpt from iteration three"}`),
	}}
	integrator := &scriptedModel{responses: []string{
		"synthesis pass one",
		"synthesis pass one, extended in pass two",
		"synthesis pass one, extended in pass two, refined in pass three",
	}}

	o := newTestOrchestrator(planner, tool, extractor, integrator, cfg)
	result, err := o.Run(context.Background(), "Miranda rights")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.History) != 3 {
		t.Fatalf("loop must terminate at the budget, got %d records", len(result.History))
	}

	// Summary only grew across passes.
	prev := 0
	for _, rec := range result.History {
		if rec.SummaryLength < prev {
			t.Errorf("summary shrank: %d -> %d", prev, rec.SummaryLength)
		}
		prev = rec.SummaryLength
	}

	var miranda []ConceptEntry
	for _, c := range result.Concepts {
		if strings.EqualFold(c.Name, "Miranda v. Arizona") {
			miranda = append(miranda, c)
		}
	}
	if len(miranda) != 1 {
		t.Fatalf("expected a single merged concept entry, got %d", len(miranda))
	}
	if !strings.Contains(miranda[0].Excerpt, "richer excerpt") {
		t.Errorf("expected the iteration-3 excerpt kept, got %q", miranda[0].Excerpt)
	}

	// No URL appears twice across the run.
	seen := map[string]bool{}
	for _, src := range result.Sources {
		key := NormalizeURL(src.URL)
		if seen[key] {
			t.Errorf("duplicate source across history: %s", src.URL)
		}
		seen[key] = true
	}
}
