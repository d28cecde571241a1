package research

import (
	"fmt"
	"sort"
	"strings"
)

// Statistics summarizes a finished run for callers that want numbers rather
// than prose.
type Statistics struct {
	Iterations         int     `json:"iterations"`
	TotalSources       int     `json:"total_sources"`
	TotalConcepts      int     `json:"total_concepts"`
	DurationSeconds    float64 `json:"duration_seconds"`
	SourcesPerPass     float64 `json:"sources_per_pass"`
	DegradedPasses     int     `json:"degraded_passes"`
	FinalVerdictReason string  `json:"final_verdict_reason"`
}

// Stats computes per-run statistics from a result.
func (r *Result) Stats() Statistics {
	stats := Statistics{
		Iterations:      r.Iterations,
		TotalSources:    len(r.Sources),
		TotalConcepts:   len(r.Concepts),
		DurationSeconds: r.Duration.Seconds(),
	}
	if r.Iterations > 0 {
		stats.SourcesPerPass = float64(len(r.Sources)) / float64(r.Iterations)
	}
	for _, rec := range r.History {
		if len(rec.Notes) > 0 {
			stats.DegradedPasses++
		}
	}
	if n := len(r.History); n > 0 {
		stats.FinalVerdictReason = r.History[n-1].Verdict.Reason
	}
	return stats
}

// MarkdownReport renders the result as a markdown document: synthesis,
// concept table, sources and the iteration log. A failed run is clearly
// marked as incomplete.
func (r *Result) MarkdownReport() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report: %s\n\n", r.Topic)
	if r.Status == StatusFailed {
		b.WriteString("> **Note:** this run ended early; the findings below are partial.\n\n")
	}

	b.WriteString("## Synthesis\n\n")
	if r.Summary == "" {
		b.WriteString("_No synthesis was produced._\n")
	} else {
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}

	if len(r.Concepts) > 0 {
		b.WriteString("\n## Key Concepts\n\n")
		b.WriteString("| Concept | Kind | Source |\n|---|---|---|\n")
		concepts := make([]ConceptEntry, len(r.Concepts))
		copy(concepts, r.Concepts)
		sort.Slice(concepts, func(i, j int) bool {
			if concepts[i].Kind != concepts[j].Kind {
				return concepts[i].Kind < concepts[j].Kind
			}
			return concepts[i].Name < concepts[j].Name
		})
		for _, c := range concepts {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Name, c.Kind, c.SourceURL)
		}
	}

	if len(r.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for i, src := range r.Sources {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, src.Title, src.URL)
		}
	}

	b.WriteString("\n## Iteration Log\n\n")
	for _, rec := range r.History {
		fmt.Fprintf(&b, "- Iteration %d: query %q, %d new sources, %d new concepts (%s)\n",
			rec.Index, rec.Query, rec.NewSources, rec.NewConcepts, rec.Verdict.Reason)
		for _, note := range rec.Notes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}

	stats := r.Stats()
	fmt.Fprintf(&b, "\n---\n%d iterations, %d sources, %d concepts, %.1fs.\n",
		stats.Iterations, stats.TotalSources, stats.TotalConcepts, stats.DurationSeconds)

	return b.String()
}
