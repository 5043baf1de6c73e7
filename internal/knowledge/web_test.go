package knowledge_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/archflow/internal/knowledge"
	"github.com/randalmurphal/archflow/internal/logging"
)

const instantAnswerJSON = `{
	"Heading": "Rate limiting",
	"AbstractText": "Rate limiting controls the rate of requests sent or received.",
	"AbstractURL": "https://en.wikipedia.org/wiki/Rate_limiting",
	"RelatedTopics": [
		{"Text": "Token bucket - an algorithm used in packet-switched networks.", "FirstURL": "https://duckduckgo.com/Token_bucket"},
		{"Name": "See also", "Topics": [
			{"Text": "Leaky bucket - an algorithm based on an analogy of a bucket.", "FirstURL": "https://duckduckgo.com/Leaky_bucket"},
			{"Text": "Backpressure - flow control between stages.", "FirstURL": "https://duckduckgo.com/Backpressure"}
		]}
	]
}`

func TestWeb_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(instantAnswerJSON))
	}))
	t.Cleanup(srv.Close)

	web := knowledge.NewWeb(knowledge.WithEndpoint(srv.URL), knowledge.WithMaxResults(3))
	got, err := web.Search(context.Background(), "rate limiting")
	require.NoError(t, err)

	assert.Equal(t, "rate limiting software architecture limits", gotQuery)
	assert.Equal(t, "Rate limiting: Rate limiting controls the rate of requests sent or received. (https://en.wikipedia.org/wiki/Rate_limiting)\n"+
		"- Token bucket - an algorithm used in packet-switched networks.\n"+
		"- Leaky bucket - an algorithm based on an analogy of a bucket.", got)

	empty, err := web.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWeb_SearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: "unexpected status"},
		{name: "bad json", status: http.StatusOK, body: "<html>", wantErr: "decode web search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := knowledge.NewWeb(knowledge.WithEndpoint(srv.URL)).Search(context.Background(), "cache")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCombined_Search(t *testing.T) {
	ctx := context.Background()
	kb := openStore(t)
	_, err := kb.Ingest(ctx, "caching.md", "Use a write-through cache in front of the database.")
	require.NoError(t, err)

	failing := knowledge.SearcherFunc(func(context.Context, string) (string, error) {
		return "", errors.New("network unreachable")
	})
	web := knowledge.SearcherFunc(func(_ context.Context, q string) (string, error) {
		return "- CDN caching for " + q, nil
	})

	tests := []struct {
		name    string
		sources []knowledge.Source
		want    string
	}{
		{
			name: "both sources",
			sources: []knowledge.Source{
				{Name: "Web search", Searcher: web},
				{Name: "Knowledge base", Searcher: kb},
			},
			want: "=== Web search ===\n- CDN caching for cache\n\n=== Knowledge base ===\n[Source: caching.md]\nUse a write-through cache in front of the database.",
		},
		{
			name: "failing web source yields local context only",
			sources: []knowledge.Source{
				{Name: "Web search", Searcher: failing},
				{Name: "Knowledge base", Searcher: kb},
			},
			want: "=== Knowledge base ===\n[Source: caching.md]\nUse a write-through cache in front of the database.",
		},
		{
			name:    "all sources failing",
			sources: []knowledge.Source{{Name: "Web search", Searcher: failing}},
			want:    "",
		},
		{
			name:    "nil searcher dropped",
			sources: []knowledge.Source{{Name: "Web search"}},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := knowledge.Combine(logging.Discard(), tt.sources...)
			got, err := c.Search(ctx, "cache")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
