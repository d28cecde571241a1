package research

import (
	"net/url"
	"strings"
	"time"
)

// Status of a research run.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ConceptKind classifies an extracted concept.
type ConceptKind string

const (
	KindStatute   ConceptKind = "statute"
	KindPrinciple ConceptKind = "principle"
	KindName      ConceptKind = "name"
	KindDate      ConceptKind = "date"
	KindTerm      ConceptKind = "term"
	KindOther     ConceptKind = "other"
)

// ParseConceptKind maps a raw kind string onto one of the fixed kinds.
// Anything unrecognized is tagged other rather than dropped.
func ParseConceptKind(s string) ConceptKind {
	switch ConceptKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindStatute:
		return KindStatute
	case KindPrinciple:
		return KindPrinciple
	case KindName:
		return KindName
	case KindDate:
		return KindDate
	case KindTerm:
		return KindTerm
	default:
		return KindOther
	}
}

// SourceRecord is a single retrieved source. Immutable once created.
type SourceRecord struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Excerpt   string    `json:"excerpt"`
	Query     string    `json:"query"`
	Relevance float64   `json:"relevance"`
	Retrieved time.Time `json:"retrieved"`
}

// ConceptEntry is a structured fact pulled out of source material.
type ConceptEntry struct {
	Name      string      `json:"name"`
	Kind      ConceptKind `json:"kind"`
	Excerpt   string      `json:"excerpt"`
	SourceURL string      `json:"source_url"`
}

// conceptKey identifies a concept for dedup: same name (case insensitive)
// and kind collapse to one entry.
func conceptKey(name string, kind ConceptKind) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(kind)
}

// Verdict is the assessor's continue/stop decision with its stated reason.
type Verdict struct {
	Continue bool   `json:"continue"`
	Reason   string `json:"reason"`
}

// IterationRecord captures the metadata of one loop pass. Records are
// append-only; nothing mutates them after the tracker stores them.
type IterationRecord struct {
	Index         int           `json:"index"`
	Query         string        `json:"query"`
	NewSources    int           `json:"new_sources"`
	NewConcepts   int           `json:"new_concepts"`
	SummaryLength int           `json:"summary_length"`
	Duration      time.Duration `json:"duration"`
	Verdict       Verdict       `json:"verdict"`
	Notes         []string      `json:"notes,omitempty"`
}

// ResearchState is the mutable object threaded through the loop. It is owned
// by a single orchestrator run and never shared across research tasks, so no
// locking is needed.
type ResearchState struct {
	Topic       string                  `json:"topic"`
	Summary     string                  `json:"summary"`
	SeenSources map[string]bool         `json:"seen_sources"`
	Sources     []SourceRecord          `json:"sources"`
	Concepts    map[string]ConceptEntry `json:"concepts"`
	Iteration   int                     `json:"iteration"`
	History     []IterationRecord       `json:"history"`
	Status      Status                  `json:"status"`
	StartTime   time.Time               `json:"start_time"`
	EndTime     time.Time               `json:"end_time,omitempty"`
}

// NewState creates the initial state for a topic.
func NewState(topic string) *ResearchState {
	return &ResearchState{
		Topic:       topic,
		SeenSources: make(map[string]bool),
		Concepts:    make(map[string]ConceptEntry),
		Status:      StatusInitialized,
		StartTime:   time.Now(),
	}
}

// addSource registers a record under its normalized URL. Returns false when
// the source was already known.
func (s *ResearchState) addSource(rec SourceRecord) bool {
	key := NormalizeURL(rec.URL)
	if key == "" || s.SeenSources[key] {
		return false
	}
	s.SeenSources[key] = true
	s.Sources = append(s.Sources, rec)
	return true
}

// priorQueries lists every query issued so far, oldest first.
func (s *ResearchState) priorQueries() []string {
	queries := make([]string, 0, len(s.History))
	for _, rec := range s.History {
		if rec.Query != "" {
			queries = append(queries, rec.Query)
		}
	}
	return queries
}

// Result is the read-only artifact handed to the caller once the loop
// terminates. A failed run still carries whatever was accumulated.
type Result struct {
	Topic      string            `json:"topic"`
	Summary    string            `json:"summary"`
	Concepts   []ConceptEntry    `json:"concepts"`
	Sources    []SourceRecord    `json:"sources"`
	History    []IterationRecord `json:"history"`
	Status     Status            `json:"status"`
	Duration   time.Duration     `json:"duration"`
	Iterations int               `json:"iterations"`
}

func resultFromState(state *ResearchState) *Result {
	concepts := make([]ConceptEntry, 0, len(state.Concepts))
	for _, c := range state.Concepts {
		concepts = append(concepts, c)
	}
	return &Result{
		Topic:      state.Topic,
		Summary:    state.Summary,
		Concepts:   concepts,
		Sources:    state.Sources,
		History:    state.History,
		Status:     state.Status,
		Duration:   state.EndTime.Sub(state.StartTime),
		Iterations: state.Iteration,
	}
}

// NormalizeURL collapses trivial URL variants (case of scheme/host, query
// string, fragment, trailing slash) to a single dedup key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// hostOf extracts the host part of a source URL for authority scoring.
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}

// scoreRelevance computes a keyword-overlap relevance score (0-100) between
// a query and the text of a result.
func scoreRelevance(query, title, excerpt string) float64 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}
	text := strings.ToLower(title + " " + excerpt)
	matches := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matches++
		}
	}
	score := float64(matches) / float64(len(words)) * 100
	if score > 100 {
		score = 100
	}
	return score
}
