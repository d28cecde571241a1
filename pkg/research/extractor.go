package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ConceptExtractor pulls structured key concepts (statutes, principles,
// names, dates, defined terms) out of new source material. It operates per
// source, not over the whole corpus, to keep prompt sizes bounded.
type ConceptExtractor struct {
	Model  llms.Model
	Logger *slog.Logger

	// MaxExcerptRunes caps how much of a source excerpt is put in the prompt.
	MaxExcerptRunes int
}

const defaultMaxExcerptRunes = 2000

func NewConceptExtractor(model llms.Model, logger *slog.Logger) *ConceptExtractor {
	return &ConceptExtractor{Model: model, Logger: logger, MaxExcerptRunes: defaultMaxExcerptRunes}
}

const extractorSystemPrompt = `You are a research analyst.
Extract the key concepts from the source material: entities, dates, statutes, legal or technical principles, and defined terms.
Classify each as one of: statute, principle, name, date, term, other.
Include a short supporting excerpt for each concept.`

const extractorSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "concepts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "kind": {"type": "string", "enum": ["statute", "principle", "name", "date", "term", "other"]},
          "excerpt": {"type": "string"}
        },
        "required": ["name", "kind"]
      }
    }
  },
  "required": ["concepts"]
}`

// Extract processes each source independently. A malformed or empty model
// response for one source degrades to zero concepts for that source and is
// logged; it never aborts extraction for the rest of the batch.
func (x *ConceptExtractor) Extract(ctx context.Context, sources []SourceRecord) []ConceptEntry {
	var all []ConceptEntry
	for _, src := range sources {
		entries, err := x.extractOne(ctx, src)
		if err != nil {
			x.Logger.Warn("Concept extraction degraded for source", "url", src.URL, "error", err)
			continue
		}
		all = append(all, entries...)
	}
	return all
}

func (x *ConceptExtractor) extractOne(ctx context.Context, src SourceRecord) ([]ConceptEntry, error) {
	maxRunes := x.MaxExcerptRunes
	if maxRunes <= 0 {
		maxRunes = defaultMaxExcerptRunes
	}

	input := fmt.Sprintf("Title: %s\nURL: %s\n\nContent:\n%s",
		src.Title, src.URL, truncateRunes(src.Excerpt, maxRunes))

	type rawConcept struct {
		Name    string `json:"name"`
		Kind    string `json:"kind"`
		Excerpt string `json:"excerpt"`
	}
	type extractResponse struct {
		Concepts []rawConcept `json:"concepts"`
	}
	var extracted extractResponse

	_, err := generateJSON(ctx, x.Model, x.Logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractorSystemPrompt+"\n\n# Response Format:\n"+extractorSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, func(content string) error {
		extracted = extractResponse{}
		if err := json.Unmarshal([]byte(content), &extracted); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]ConceptEntry, 0, len(extracted.Concepts))
	for _, c := range extracted.Concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		entries = append(entries, ConceptEntry{
			Name:      name,
			Kind:      ParseConceptKind(c.Kind),
			Excerpt:   strings.TrimSpace(c.Excerpt),
			SourceURL: src.URL,
		})
	}

	x.Logger.Info("Concepts extracted", "url", src.URL, "count", len(entries))
	return entries, nil
}
