package research

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// scriptedModel returns canned responses in order. Components that retry
// consume one response per attempt.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("no scripted response available")
	}
	resp := m.responses[m.calls]
	m.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: resp}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// failingModel always errors, simulating a hard-unavailable LLM backend.
type failingModel struct{ err error }

func (m failingModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, m.err
}

func (m failingModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", m.err
}

// fakeSearch returns a fixed result set per call, in order. Once the script
// is exhausted it keeps returning the last entry.
type fakeSearch struct {
	batches [][]SourceRecord
	calls   int
}

func (f *fakeSearch) Search(_ context.Context, _ string) ([]SourceRecord, error) {
	i := f.calls
	f.calls++
	if len(f.batches) == 0 {
		return nil, nil
	}
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return f.batches[i], nil
}

// flakySearch fails the first n calls, then delegates to results.
type flakySearch struct {
	failures int
	results  []SourceRecord
	calls    int
}

func (f *flakySearch) Search(_ context.Context, _ string) ([]SourceRecord, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("search backend timeout")
	}
	return f.results, nil
}

// brokenSearch always fails.
type brokenSearch struct{}

func (brokenSearch) Search(context.Context, string) ([]SourceRecord, error) {
	return nil, errors.New("search backend down")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func queryJSON(q string) string {
	return `{"query": "` + q + `"}`
}
