package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// SummaryIntegrator merges new source material and extracted concepts into
// the running synthesis. Integration is phrased as "merge new findings into
// the existing summary", never "regenerate from scratch", so the synthesis
// only grows: a rewrite that silently drops earlier facts is rejected by the
// shrink guard and the prior summary kept for that pass.
type SummaryIntegrator struct {
	Model  llms.Model
	Logger *slog.Logger

	// ShrinkTolerance is the accepted length ratio: a merged summary shorter
	// than ShrinkTolerance * len(prior) counts as a failed integration.
	ShrinkTolerance float64
}

func NewSummaryIntegrator(model llms.Model, shrinkTolerance float64, logger *slog.Logger) *SummaryIntegrator {
	if shrinkTolerance <= 0 || shrinkTolerance > 1 {
		shrinkTolerance = defaultShrinkTolerance
	}
	return &SummaryIntegrator{Model: model, ShrinkTolerance: shrinkTolerance, Logger: logger}
}

const integratorSystemPrompt = `You are a research writer maintaining a running synthesis.
Merge the new findings into the existing synthesis. Extend and refine it; never drop facts that are already present.
Return the complete updated synthesis as plain text.`

// Integrate updates state.Summary and state.Concepts in place. It returns
// the number of genuinely new concepts and whether the summary merge was
// degraded (model failure or shrink rejection, prior summary retained).
func (g *SummaryIntegrator) Integrate(ctx context.Context, state *ResearchState, newSources []SourceRecord, newConcepts []ConceptEntry) (added int, degraded bool) {
	added = g.mergeConcepts(state, newConcepts)

	if len(newSources) == 0 && len(newConcepts) == 0 {
		return added, false
	}

	input := g.buildMergeInput(state, newSources, newConcepts)
	merged, err := generateText(ctx, g.Model, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, integratorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	})
	if err != nil {
		g.Logger.Warn("Integration degraded, keeping prior summary", "error", err)
		return added, true
	}

	merged = strings.TrimSpace(merged)
	minLen := int(g.ShrinkTolerance * float64(len(state.Summary)))
	if len(merged) < minLen {
		g.Logger.Warn("Merged summary shrank below tolerance, keeping prior summary",
			"prior_len", len(state.Summary), "merged_len", len(merged), "tolerance", g.ShrinkTolerance)
		return added, true
	}

	state.Summary = merged
	return added, false
}

// mergeConcepts applies the dedup/enrichment rule: duplicates (same name and
// kind) collapse to one entry, keeping whichever carries the richer excerpt.
// Later extractions may enrich but never replace with less information.
func (g *SummaryIntegrator) mergeConcepts(state *ResearchState, entries []ConceptEntry) int {
	added := 0
	for _, entry := range entries {
		key := conceptKey(entry.Name, entry.Kind)
		existing, ok := state.Concepts[key]
		if !ok {
			state.Concepts[key] = entry
			added++
			continue
		}
		if len(entry.Excerpt) > len(existing.Excerpt) {
			state.Concepts[key] = entry
		}
	}
	return added
}

func (g *SummaryIntegrator) buildMergeInput(state *ResearchState, newSources []SourceRecord, newConcepts []ConceptEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", state.Topic)

	if state.Summary == "" {
		b.WriteString("\nExisting synthesis: (none yet, write the first version)\n")
	} else {
		fmt.Fprintf(&b, "\nExisting synthesis:\n%s\n", state.Summary)
	}

	if len(newSources) > 0 {
		b.WriteString("\nNew sources:\n")
		for _, src := range newSources {
			fmt.Fprintf(&b, "- %s (%s)\n  %s\n", src.Title, src.URL, truncateRunes(src.Excerpt, 1000))
		}
	}
	if len(newConcepts) > 0 {
		b.WriteString("\nNew key concepts:\n")
		for _, c := range newConcepts {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", c.Kind, c.Name, truncateRunes(c.Excerpt, 300))
		}
	}
	return b.String()
}
