package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoEndpoint is the Instant Answer API used by Web.
const DuckDuckGoEndpoint = "https://api.duckduckgo.com/"

// webQuerySuffix steers results toward architecture limits and trade-offs.
const webQuerySuffix = " software architecture limits"

// Web searches the public web through the DuckDuckGo Instant Answer API.
type Web struct {
	endpoint   string
	client     *http.Client
	maxResults int
}

// WebOption configures Web.
type WebOption func(*Web)

// WithEndpoint points Web at another API root.
func WithEndpoint(endpoint string) WebOption {
	return func(w *Web) { w.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) WebOption {
	return func(w *Web) {
		if c != nil {
			w.client = c
		}
	}
}

// WithMaxResults bounds the number of related topics returned.
func WithMaxResults(n int) WebOption {
	return func(w *Web) {
		if n > 0 {
			w.maxResults = n
		}
	}
}

// NewWeb creates a web searcher.
func NewWeb(opts ...WebOption) *Web {
	w := &Web{
		endpoint:   DuckDuckGoEndpoint,
		client:     &http.Client{Timeout: 15 * time.Second},
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type instantAnswer struct {
	Heading       string       `json:"Heading"`
	AbstractText  string       `json:"AbstractText"`
	AbstractURL   string       `json:"AbstractURL"`
	RelatedTopics []topicEntry `json:"RelatedTopics"`
}

// topicEntry is either a topic or a named group of topics.
type topicEntry struct {
	Text     string       `json:"Text"`
	FirstURL string       `json:"FirstURL"`
	Topics   []topicEntry `json:"Topics"`
}

// Search implements Searcher.
func (w *Web) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	params := url.Values{}
	params.Set("q", query+webQuerySuffix)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build web search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search: unexpected status %s", resp.Status)
	}

	var ans instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return "", fmt.Errorf("decode web search: %w", err)
	}
	return w.format(ans), nil
}

func (w *Web) format(ans instantAnswer) string {
	var parts []string
	if ans.AbstractText != "" {
		abstract := ans.AbstractText
		if ans.Heading != "" {
			abstract = ans.Heading + ": " + abstract
		}
		if ans.AbstractURL != "" {
			abstract += " (" + ans.AbstractURL + ")"
		}
		parts = append(parts, abstract)
	}

	var walk func([]topicEntry)
	walk = func(entries []topicEntry) {
		for _, e := range entries {
			if len(parts) >= w.maxResults {
				return
			}
			if len(e.Topics) > 0 {
				walk(e.Topics)
				continue
			}
			if e.Text != "" {
				parts = append(parts, "- "+e.Text)
			}
		}
	}
	walk(ans.RelatedTopics)

	return strings.Join(parts, "\n")
}
