package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SearchTool is the pluggable search capability. Any backend (web search,
// document index, mock) satisfies the orchestrator by implementing it.
type SearchTool interface {
	Search(ctx context.Context, query string) ([]SourceRecord, error)
}

// SearchExecutor invokes the search tool and filters out sources that were
// already seen in a previous pass.
type SearchExecutor struct {
	Tool   SearchTool
	Logger *slog.Logger
}

func NewSearchExecutor(tool SearchTool, logger *slog.Logger) *SearchExecutor {
	return &SearchExecutor{Tool: tool, Logger: logger}
}

// Execute runs the query and returns only sources whose normalized URL is
// not in seen. An empty slice is a legitimate outcome, not an error: "no new
// sources this pass" is a signal the assessor consumes. Tool failures are
// surfaced as ErrSearchUnavailable; the retry policy lives in the
// orchestrator.
func (e *SearchExecutor) Execute(ctx context.Context, query string, seen map[string]bool) ([]SourceRecord, error) {
	raw, err := e.Tool.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	var fresh []SourceRecord
	batch := make(map[string]bool)
	for _, r := range raw {
		key := NormalizeURL(r.URL)
		if key == "" || seen[key] || batch[key] {
			continue
		}
		batch[key] = true
		r.Query = query
		r.Relevance = scoreRelevance(query, r.Title, r.Excerpt)
		if r.Retrieved.IsZero() {
			r.Retrieved = time.Now()
		}
		fresh = append(fresh, r)
	}

	e.Logger.Info("Search executed", "query", query, "raw", len(raw), "new", len(fresh))
	return fresh, nil
}
