package research

// IterationTracker records per-iteration metadata. Pure accumulation: no
// external calls, and prior records are never touched.
type IterationTracker struct{}

func NewIterationTracker() *IterationTracker {
	return &IterationTracker{}
}

// Record appends the finished record to state.History and returns it.
func (t *IterationTracker) Record(state *ResearchState, rec IterationRecord) IterationRecord {
	rec.Index = state.Iteration
	rec.SummaryLength = len(state.Summary)
	state.History = append(state.History, rec)
	return rec
}
