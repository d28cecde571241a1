package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily queries the Tavily web search API.
type Tavily struct {
	APIKey string
	// Depth controls Tavily's depth parameter (basic or advanced).
	Depth string
	// MaxResults caps how many results a single query may return.
	MaxResults int

	client   *http.Client
	endpoint string
}

// NewTavily constructs a Tavily search backend.
func NewTavily(apiKey string, depth string) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{
		APIKey:     apiKey,
		Depth:      depth,
		MaxResults: 5,
		client:     &http.Client{Timeout: 10 * time.Second},
		endpoint:   tavilyEndpoint,
	}
}

// NewTavilyWithClient constructs a Tavily backend using the supplied HTTP
// client and endpoint. Tests use it to point at a local server.
func NewTavilyWithClient(apiKey string, depth string, client *http.Client, endpoint string) *Tavily {
	t := NewTavily(apiKey, depth)
	if client != nil {
		t.client = client
	}
	if endpoint != "" {
		t.endpoint = endpoint
	}
	return t
}

// Search posts a query to Tavily and maps the results to source records.
func (t *Tavily) Search(ctx context.Context, query string) ([]research.SourceRecord, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(map[string]any{
		"query":   query,
		"api_key": t.APIKey,
		"depth":   t.Depth,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	max := t.MaxResults
	if max <= 0 {
		max = 5
	}
	records := make([]research.SourceRecord, 0, len(response.Results))
	for _, r := range response.Results {
		records = append(records, research.SourceRecord{
			Title:   r.Title,
			URL:     r.URL,
			Excerpt: r.Content,
		})
		if len(records) >= max {
			break
		}
	}
	return records, nil
}
