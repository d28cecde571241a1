package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// CriteriaScores holds the three independent completeness criteria.
type CriteriaScores struct {
	Depth     bool `json:"depth"`
	Authority bool `json:"authority"`
	Coverage  bool `json:"coverage"`
}

func (c CriteriaScores) satisfied() bool {
	return c.Depth && c.Authority && c.Coverage
}

func (c CriteriaScores) unmet() []string {
	var out []string
	if !c.Depth {
		out = append(out, "depth")
	}
	if !c.Authority {
		out = append(out, "authority")
	}
	if !c.Coverage {
		out = append(out, "coverage")
	}
	return out
}

// ScoringStrategy computes the completeness criteria for the current state.
// pending is the record of the iteration being assessed; it has not been
// appended to state.History yet.
type ScoringStrategy interface {
	Score(state *ResearchState, pending IterationRecord) CriteriaScores
}

// HeuristicScorer is the default strategy. Depth looks at whether the recent
// window of iterations still adds meaningful new material, authority at the
// variety of source hosts, coverage at the spread of concept kinds.
type HeuristicScorer struct {
	Config Config
}

func (h HeuristicScorer) Score(state *ResearchState, pending IterationRecord) CriteriaScores {
	cfg := h.Config.withDefaults()

	recs := make([]IterationRecord, 0, len(state.History)+1)
	recs = append(recs, state.History...)
	recs = append(recs, pending)
	if len(recs) > cfg.DepthWindow {
		recs = recs[len(recs)-cfg.DepthWindow:]
	}

	var newSources, newConcepts int
	for _, r := range recs {
		newSources += r.NewSources
		newConcepts += r.NewConcepts
	}
	depth := newSources == 0 && newConcepts == 0
	if !depth && len(state.Sources) > 0 {
		ratio := float64(newSources) / float64(len(state.Sources))
		depth = ratio <= cfg.MinNewSourceRatio
	}

	hosts := make(map[string]bool)
	for _, src := range state.Sources {
		if host := hostOf(src.URL); host != "" {
			hosts[host] = true
		}
	}
	authority := len(hosts) >= cfg.MinDomains

	kinds := make(map[ConceptKind]bool)
	for _, c := range state.Concepts {
		if c.Kind != KindOther {
			kinds[c.Kind] = true
		}
	}
	coverage := len(kinds) >= cfg.MinConceptKinds

	return CriteriaScores{Depth: depth, Authority: authority, Coverage: coverage}
}

// CompletenessAssessor decides whether the loop continues. The hard
// iteration/time budget is an unconditional override so the loop terminates
// even if the criteria are never satisfied. When the criteria are met and a
// model is configured, the model gets the final word; an ambiguous or
// unparseable judgment defaults to continue (favor more research over a
// premature stop).
type CompletenessAssessor struct {
	Model  llms.Model
	Scorer ScoringStrategy
	Config Config
	Logger *slog.Logger
}

func NewCompletenessAssessor(model llms.Model, cfg Config, logger *slog.Logger) *CompletenessAssessor {
	cfg = cfg.withDefaults()
	return &CompletenessAssessor{
		Model:  model,
		Scorer: HeuristicScorer{Config: cfg},
		Config: cfg,
		Logger: logger,
	}
}

const assessorSystemPrompt = `You are a research manager.
The coverage heuristics indicate the research may be complete. Review the synthesis and decide whether to stop or continue.`

const assessorSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "verdict": {"type": "string", "enum": ["stop", "continue"]},
    "reason": {"type": "string"}
  },
  "required": ["verdict", "reason"]
}`

// Assess evaluates the state after the iteration described by pending.
func (a *CompletenessAssessor) Assess(ctx context.Context, state *ResearchState, pending IterationRecord, elapsed time.Duration) Verdict {
	if state.Iteration >= a.Config.MaxIterations {
		return Verdict{Continue: false, Reason: fmt.Sprintf("budget exhausted: reached %d iterations", a.Config.MaxIterations)}
	}
	if elapsed >= a.Config.MaxWallClock {
		return Verdict{Continue: false, Reason: fmt.Sprintf("budget exhausted: wall clock limit %s reached", a.Config.MaxWallClock)}
	}

	scores := a.Scorer.Score(state, pending)
	if !scores.satisfied() {
		return Verdict{Continue: true, Reason: "criteria not yet satisfied: " + strings.Join(scores.unmet(), ", ")}
	}
	if a.Model == nil {
		return Verdict{Continue: false, Reason: "depth, authority and coverage criteria satisfied"}
	}
	return a.confirmWithModel(ctx, state, pending)
}

func (a *CompletenessAssessor) confirmWithModel(ctx context.Context, state *ResearchState, pending IterationRecord) Verdict {
	input := fmt.Sprintf("Topic: %s\nIteration: %d\nSources: %d\nConcepts: %d\nNew sources this pass: %d\n\nSynthesis:\n%s",
		state.Topic, state.Iteration, len(state.Sources), len(state.Concepts), pending.NewSources,
		truncateRunes(state.Summary, 4000))

	resp, err := a.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, assessorSystemPrompt+"\n\n# Response Format:\n"+assessorSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithJSONMode())
	if err != nil || len(resp.Choices) == 0 {
		a.Logger.Warn("Assessor judgment unavailable, defaulting to continue", "error", err)
		return Verdict{Continue: true, Reason: "assessor judgment unavailable, continuing"}
	}

	var judgment struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &judgment); err != nil {
		a.Logger.Warn("Assessor judgment unparseable, defaulting to continue", "error", err)
		return Verdict{Continue: true, Reason: "assessor judgment unparseable, continuing"}
	}

	switch strings.ToLower(strings.TrimSpace(judgment.Verdict)) {
	case "stop":
		return Verdict{Continue: false, Reason: judgment.Reason}
	case "continue":
		return Verdict{Continue: true, Reason: judgment.Reason}
	default:
		return Verdict{Continue: true, Reason: "assessor judgment ambiguous, continuing"}
	}
}
