package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// arxivEntry holds a single arXiv Atom feed entry.
type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// Arxiv queries the arXiv API. It is a good fit for academic topics and
// needs no API key.
type Arxiv struct {
	MaxResults int

	client   *http.Client
	endpoint string
}

// NewArxiv constructs an arXiv search backend.
func NewArxiv() *Arxiv {
	return &Arxiv{
		MaxResults: 5,
		client:     &http.Client{Timeout: 15 * time.Second},
		endpoint:   arxivEndpoint,
	}
}

// NewArxivWithClient constructs an arXiv backend using the supplied HTTP
// client and endpoint. Tests use it to point at a local server.
func NewArxivWithClient(client *http.Client, endpoint string) *Arxiv {
	a := NewArxiv()
	if client != nil {
		a.client = client
	}
	if endpoint != "" {
		a.endpoint = endpoint
	}
	return a
}

// Search queries the arXiv API and maps feed entries to source records.
func (a *Arxiv) Search(ctx context.Context, query string) ([]research.SourceRecord, error) {
	max := a.MaxResults
	if max <= 0 {
		max = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(max))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	records := make([]research.SourceRecord, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := entryURL(entry)
		if link == "" {
			continue
		}
		records = append(records, research.SourceRecord{
			Title:   strings.TrimSpace(entry.Title),
			URL:     link,
			Excerpt: strings.TrimSpace(entry.Summary),
		})
	}
	return records, nil
}

// entryURL prefers the abstract page link, falling back to the PDF link.
func entryURL(entry arxivEntry) string {
	var pdf string
	for _, link := range entry.Link {
		if link.Type == "text/html" || link.Rel == "alternate" {
			return link.Href
		}
		if link.Type == "application/pdf" {
			pdf = link.Href
		}
	}
	return pdf
}
