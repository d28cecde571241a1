package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// QueryPlanner produces the next search query from the current research
// state. It targets gaps in coverage and avoids repeating prior queries.
type QueryPlanner struct {
	Model  llms.Model
	Logger *slog.Logger
}

func NewQueryPlanner(model llms.Model, logger *slog.Logger) *QueryPlanner {
	return &QueryPlanner{Model: model, Logger: logger}
}

const plannerSystemPrompt = `You are a research planner.
Generate ONE specific search query that targets a gap in the current research coverage.
Do not repeat any of the previously issued queries.`

const plannerSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "The next search query"
    }
  },
  "required": ["query"]
}`

// Plan returns the next query. If the model proposes a verbatim repeat of a
// prior query it requests one reformulation before accepting the duplicate.
// A model that stays unavailable through retries yields ErrPlanningUnavailable.
func (p *QueryPlanner) Plan(ctx context.Context, state *ResearchState) (string, error) {
	prior := state.priorQueries()

	query, err := p.generateQuery(ctx, state, prior, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlanningUnavailable, err)
	}

	if !isDuplicateQuery(query, prior) {
		return query, nil
	}

	p.Logger.Warn("Planner repeated a prior query, requesting reformulation", "query", query)
	reformulated, err := p.generateQuery(ctx, state, prior, query)
	if err != nil {
		// The first response was usable, just repetitive. Fall back to it
		// rather than failing the iteration.
		return query, nil
	}
	return reformulated, nil
}

func (p *QueryPlanner) generateQuery(ctx context.Context, state *ResearchState, prior []string, rejected string) (string, error) {
	var input strings.Builder
	fmt.Fprintf(&input, "Topic: %s\nIteration: %d\nKnown concepts: %d\n", state.Topic, state.Iteration, len(state.Concepts))
	if state.Summary != "" {
		fmt.Fprintf(&input, "\nCurrent synthesis:\n%s\n", truncateRunes(state.Summary, 2000))
	}
	if len(prior) > 0 {
		fmt.Fprintf(&input, "\nPreviously issued queries (do not repeat):\n- %s\n", strings.Join(prior, "\n- "))
	}
	if rejected != "" {
		fmt.Fprintf(&input, "\nYour previous proposal %q repeats an earlier query. Propose a different angle.\n", rejected)
	}

	type queryResponse struct {
		Query string `json:"query"`
	}
	var queryResp queryResponse

	_, err := generateJSON(ctx, p.Model, p.Logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, plannerSystemPrompt+"\n\n# Response Format:\n"+plannerSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, func(content string) error {
		queryResp = queryResponse{}
		if err := json.Unmarshal([]byte(content), &queryResp); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if strings.TrimSpace(queryResp.Query) == "" {
			return fmt.Errorf("empty query")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	query := strings.TrimSpace(queryResp.Query)
	p.Logger.Info("Planned query", "query", query)
	return query, nil
}

// isDuplicateQuery reports whether q matches a prior query verbatim, ignoring
// case and surrounding whitespace.
func isDuplicateQuery(q string, prior []string) bool {
	norm := normalizeQuery(q)
	for _, p := range prior {
		if normalizeQuery(p) == norm {
			return true
		}
	}
	return false
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
