// Package github searches GitHub repositories for a keyword.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"hotspot/internal/model"
	"hotspot/internal/source"
)

const (
	DefaultBaseURL = "https://api.github.com"
	relevance      = 0.85
)

type Config struct {
	BaseURL  string
	Token    string
	MinStars int
	PerPage  int
	Timeout  time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

var _ source.Adapter = (*Client)(nil)

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MinStars <= 0 {
		cfg.MinStars = 50
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{}
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}))
	}
	httpClient.Timeout = cfg.Timeout
	return &Client{cfg: cfg, client: httpClient, log: log}
}

func (c *Client) Platform() model.Platform { return model.PlatformGitHub }

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

type repository struct {
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	CreatedAt       string `json:"created_at"`
	StargazersCount int64  `json:"stargazers_count"`
}

func (c *Client) Search(ctx context.Context, keyword string) ([]model.Candidate, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return nil, &source.Error{Platform: model.PlatformGitHub, Kind: source.KindNotConfigured, Err: err}
	}
	u.Path = path.Join(u.Path, "/search/repositories")
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s stars:>%d", keyword, c.cfg.MinStars))
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, source.FromTransport(model.PlatformGitHub, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "hotspot/1.0")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, source.FromTransport(model.PlatformGitHub, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if err != nil {
		return nil, source.FromTransport(model.PlatformGitHub, err)
	}
	if resp.StatusCode >= 300 {
		return nil, source.FromStatus(model.PlatformGitHub, resp.StatusCode, resp.Header, body)
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &source.Error{Platform: model.PlatformGitHub, Kind: source.KindBadResponse, Err: err}
	}

	out := make([]model.Candidate, 0, len(parsed.Items))
	for _, repo := range parsed.Items {
		if repo.FullName == "" {
			continue
		}
		content := source.CleanText(repo.Description)
		if content == "" {
			content = "GitHub repository for " + keyword
		}
		published, err := time.Parse(time.RFC3339, repo.CreatedAt)
		if err != nil {
			published = time.Now().UTC()
		}
		out = append(out, model.Candidate{
			Title:          repo.FullName,
			Content:        content,
			Source:         model.PlatformGitHub,
			SourceURL:      repo.HTMLURL,
			RelevanceScore: relevance,
			PublishedAt:    published.UTC(),
			Views:          0,
			Likes:          repo.StargazersCount,
		})
	}
	c.log.Debug("[GitHub] search done", slog.String("keyword", keyword), slog.Int("results", len(out)))
	return out, nil
}
