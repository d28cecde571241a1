package research

import "errors"

// Only hard unavailability of an external capability surfaces as an error.
// Recoverable conditions (empty search results, malformed extraction, a
// rejected summary merge) are absorbed at the component boundary and show up
// as notes on the IterationRecord instead.
var (
	// ErrPlanningUnavailable means the language model could not produce a
	// query for this iteration.
	ErrPlanningUnavailable = errors.New("planning unavailable")

	// ErrSearchUnavailable means the search tool failed or timed out.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrEmptyTopic rejects a research run with a blank topic.
	ErrEmptyTopic = errors.New("research topic must not be empty")

	// ErrOrchestration flags an internal invariant violation.
	ErrOrchestration = errors.New("orchestration error")
)
