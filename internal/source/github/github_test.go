package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspot/internal/model"
	"hotspot/internal/source"
)

const searchBody = `{
  "total_count": 2,
  "items": [
    {
      "full_name": "ollama/ollama",
      "description": "Get up and running with   large language models via Client<T>.",
      "html_url": "https://github.com/ollama/ollama",
      "created_at": "2023-06-26T19:39:32Z",
      "stargazers_count": 150000
    },
    {
      "full_name": "someone/empty_desc",
      "description": "",
      "html_url": "https://github.com/someone/empty_desc",
      "created_at": "not a date",
      "stargazers_count": 75
    },
    {"full_name": "", "html_url": "https://github.com/x"}
  ]
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "llm stars:>50", q.Get("q"))
		assert.Equal(t, "stars", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("per_page"))
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "ghp_test"}, nil)
	got, err := c.Search(context.Background(), "llm")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ollama/ollama", got[0].Title)
	assert.Equal(t, "Get up and running with large language models via Client<T>.", got[0].Content)
	assert.Equal(t, "https://github.com/ollama/ollama", got[0].SourceURL)
	assert.Equal(t, model.PlatformGitHub, got[0].Source)
	assert.Equal(t, 0.85, got[0].RelevanceScore)
	assert.Equal(t, int64(150000), got[0].Likes)
	assert.Zero(t, got[0].Views)
	assert.Equal(t, time.Date(2023, 6, 26, 19, 39, 32, 0, time.UTC), got[0].PublishedAt)

	assert.Equal(t, "someone/empty_desc", got[1].Title)
	assert.Equal(t, "GitHub repository for llm", got[1].Content)
	assert.False(t, got[1].PublishedAt.IsZero())
}

func TestSearchWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))
	defer srv.Close()

	got, err := New(Config{BaseURL: srv.URL, MinStars: 500, PerPage: 5}, nil).Search(context.Background(), "rust")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header map[string]string
		body   string
		want   source.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, nil, `{"message":"Bad credentials"}`, source.KindAuth},
		{"rate limited", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0", "Retry-After": "60"}, `{"message":"API rate limit exceeded"}`, source.KindRateLimited},
		{"server error", http.StatusBadGateway, nil, `oops`, source.KindBadResponse},
		{"bad json", http.StatusOK, nil, `{"items": [}`, source.KindBadResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(Config{BaseURL: srv.URL}, nil).Search(context.Background(), "go")
			require.Error(t, err)
			assert.True(t, source.IsKind(err, tc.want), "%v", err)
		})
	}
}

func TestSearchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: url}, nil).Search(context.Background(), "go")
	require.Error(t, err)
	assert.True(t, source.IsKind(err, source.KindNetwork), "%v", err)
}
