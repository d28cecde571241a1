package research

import (
	"context"
	"errors"
	"testing"
)

func TestPlannerReturnsQuery(t *testing.T) {
	model := &scriptedModel{responses: []string{queryJSON("miranda rights history")}}
	planner := NewQueryPlanner(model, testLogger())

	query, err := planner.Plan(context.Background(), NewState("Miranda rights"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "miranda rights history" {
		t.Errorf("got query %q", query)
	}
}

func TestPlannerReformulatesDuplicate(t *testing.T) {
	model := &scriptedModel{responses: []string{
		queryJSON("miranda rights history"),
		queryJSON("miranda v arizona ruling"),
	}}
	planner := NewQueryPlanner(model, testLogger())

	state := NewState("Miranda rights")
	state.History = append(state.History, IterationRecord{Index: 1, Query: "Miranda Rights History"})

	query, err := planner.Plan(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "miranda v arizona ruling" {
		t.Errorf("expected reformulated query, got %q", query)
	}
	if model.calls != 2 {
		t.Errorf("expected exactly 2 model calls (one reformulation), got %d", model.calls)
	}
}

func TestPlannerAcceptsDuplicateAfterSingleRetry(t *testing.T) {
	// Both proposals repeat a prior query: fallback policy accepts the
	// duplicate instead of retrying forever.
	model := &scriptedModel{responses: []string{
		queryJSON("same query"),
		queryJSON("same query"),
	}}
	planner := NewQueryPlanner(model, testLogger())

	state := NewState("topic")
	state.History = append(state.History, IterationRecord{Index: 1, Query: "same query"})

	query, err := planner.Plan(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "same query" {
		t.Errorf("expected duplicate accepted as fallback, got %q", query)
	}
	if model.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", model.calls)
	}
}

func TestPlannerUnavailable(t *testing.T) {
	planner := NewQueryPlanner(failingModel{err: errors.New("backend down")}, testLogger())

	_, err := planner.Plan(context.Background(), NewState("topic"))
	if !errors.Is(err, ErrPlanningUnavailable) {
		t.Fatalf("expected ErrPlanningUnavailable, got %v", err)
	}
}

func TestPlannerRecoversFromMalformedResponse(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"not json at all",
		queryJSON("recovered query"),
	}}
	planner := NewQueryPlanner(model, testLogger())

	query, err := planner.Plan(context.Background(), NewState("topic"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "recovered query" {
		t.Errorf("got %q", query)
	}
}
