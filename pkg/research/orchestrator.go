package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Phase names the orchestrator's state machine states.
type Phase string

const (
	PhaseInit        Phase = "init"
	PhasePlanning    Phase = "planning"
	PhaseSearching   Phase = "searching"
	PhaseExtracting  Phase = "extracting"
	PhaseIntegrating Phase = "integrating"
	PhaseAssessing   Phase = "assessing"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// maxConsecutiveUnavailable is how many back-to-back passes may lose their
// external capability (planner LLM or search tool, after the single retry)
// before the run transitions to FAILED.
const maxConsecutiveUnavailable = 2

// Orchestrator owns the research loop: it sequences planning, search,
// extraction, integration and assessment, enforces the iteration and wall
// clock budgets, and returns the final synthesis with the iteration log.
//
// The component fields are exported so callers can swap any of them out
// (custom scorer, mock search tool) without changing the loop.
type Orchestrator struct {
	Planner    *QueryPlanner
	Executor   *SearchExecutor
	Extractor  *ConceptExtractor
	Integrator *SummaryIntegrator
	Assessor   *CompletenessAssessor
	Tracker    *IterationTracker
	Logger     *slog.Logger

	// OnIteration, when set, is called with a snapshot of the state after
	// every recorded iteration. The server uses it to persist state and
	// archive new sources.
	OnIteration func(state ResearchState)

	cfg Config
}

// NewOrchestrator wires the default components around a language model
// capability and a search tool.
func NewOrchestrator(model llms.Model, tool SearchTool, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		Planner:    NewQueryPlanner(model, logger),
		Executor:   NewSearchExecutor(tool, logger),
		Extractor:  NewConceptExtractor(model, logger),
		Integrator: NewSummaryIntegrator(model, cfg.ShrinkTolerance, logger),
		Assessor:   NewCompletenessAssessor(model, cfg, logger),
		Tracker:    NewIterationTracker(),
		Logger:     logger,
		cfg:        cfg,
	}
}

// Config returns the effective (defaulted) configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Run performs the research loop for topic and returns the final synthesis,
// concept table and iteration history. A failed run still returns whatever
// partial state was accumulated, together with the error that ended it.
func (o *Orchestrator) Run(ctx context.Context, topic string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	state := NewState(topic)
	state.Status = StatusInProgress
	start := time.Now()
	o.Logger.Info("Starting research loop", "topic", topic, "max_iterations", o.cfg.MaxIterations)

	consecutiveUnavailable := 0

	for {
		// Cooperative cancellation: checked before every PLANNING entry so
		// no new iteration begins after a cancellation request.
		if err := ctx.Err(); err != nil {
			return o.fail(state, fmt.Errorf("research cancelled: %w", err))
		}
		if state.Iteration >= o.cfg.MaxIterations {
			// Unconditional bound, independent of assessor behavior.
			return o.finish(state), nil
		}

		// The orchestrator is the sole owner of the iteration counter,
		// incremented on entry to PLANNING.
		state.Iteration++
		iterStart := time.Now()
		o.Logger.Info("Starting iteration", "iteration", state.Iteration, "max", o.cfg.MaxIterations)

		rec, unavailable := o.runIteration(ctx, state, start)
		rec.Duration = time.Since(iterStart)
		rec = o.Tracker.Record(state, rec)

		if o.OnIteration != nil {
			o.OnIteration(*state)
		}

		if unavailable {
			consecutiveUnavailable++
			if consecutiveUnavailable >= maxConsecutiveUnavailable {
				return o.fail(state, fmt.Errorf("external capability unavailable for %d consecutive iterations", consecutiveUnavailable))
			}
		} else {
			consecutiveUnavailable = 0
		}

		if !rec.Verdict.Continue {
			o.Logger.Info("Research complete", "iterations", state.Iteration, "reason", rec.Verdict.Reason)
			return o.finish(state), nil
		}
	}
}

// runIteration performs one PLANNING→ASSESSING pass. It returns the pending
// iteration record (not yet appended) and whether an external capability was
// hard-unavailable during the pass.
func (o *Orchestrator) runIteration(ctx context.Context, state *ResearchState, runStart time.Time) (IterationRecord, bool) {
	var rec IterationRecord

	// PLANNING
	query, err := o.Planner.Plan(ctx, state)
	if err != nil {
		// Fatal for this iteration, not for the run: record a no-op pass.
		o.Logger.Error("Planning failed", "iteration", state.Iteration, "error", err)
		rec.Notes = append(rec.Notes, "planning unavailable: "+err.Error())
		rec.Verdict = o.Assessor.Assess(ctx, state, rec, time.Since(runStart))
		return rec, true
	}
	rec.Query = query

	// SEARCHING, with a single retry on hard failure.
	sources, err := o.Executor.Execute(ctx, query, state.SeenSources)
	if err != nil {
		o.Logger.Warn("Search failed, retrying once", "query", query, "error", err)
		sources, err = o.Executor.Execute(ctx, query, state.SeenSources)
	}
	searchUnavailable := err != nil
	if searchUnavailable {
		o.Logger.Error("Search unavailable after retry, treating iteration as no-op pass", "query", query, "error", err)
		rec.Notes = append(rec.Notes, "search unavailable: "+err.Error())
		sources = nil
	}

	for _, src := range sources {
		if !state.addSource(src) {
			// Executor already deduplicated against seen; a collision here
			// would be an invariant break worth hearing about.
			o.Logger.Error("Duplicate source slipped past executor dedup", "url", src.URL)
		}
	}
	rec.NewSources = len(sources)

	// EXTRACTING: per-source, degrades to zero concepts on bad output.
	concepts := o.Extractor.Extract(ctx, sources)

	// INTEGRATING: merge-only summary update plus concept enrichment.
	added, degraded := o.Integrator.Integrate(ctx, state, sources, concepts)
	rec.NewConcepts = added
	if degraded {
		rec.Notes = append(rec.Notes, "integration degraded: prior summary retained")
	}

	// ASSESSING
	rec.Verdict = o.Assessor.Assess(ctx, state, rec, time.Since(runStart))
	return rec, searchUnavailable
}

func (o *Orchestrator) finish(state *ResearchState) *Result {
	state.Status = StatusCompleted
	state.EndTime = time.Now()
	return resultFromState(state)
}

func (o *Orchestrator) fail(state *ResearchState, err error) (*Result, error) {
	o.Logger.Error("Research run failed, returning partial results", "error", err, "iterations", state.Iteration)
	state.Status = StatusFailed
	state.EndTime = time.Now()
	return resultFromState(state), err
}
