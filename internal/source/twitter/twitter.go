// Package twitter searches recent tweets through the X API v2.
package twitter

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
	DefaultBaseURL = "https://api.twitter.com/2"
	relevance      = 0.8
	titleRunes     = 80
)

type Config struct {
	BaseURL     string
	BearerToken string
	MaxResults  int
	Timeout     time.Duration
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
	if cfg.MaxResults < 10 || cfg.MaxResults > 100 {
		cfg.MaxResults = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	cfg.BearerToken = DecodeToken(cfg.BearerToken)
	c := &Client{cfg: cfg, log: log}
	if cfg.BearerToken != "" {
		c.client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken}))
		c.client.Timeout = cfg.Timeout
	}
	return c
}

// DecodeToken undoes the percent-encoding of '+' and '=' that bearer tokens
// often carry when copied from the developer portal.
func DecodeToken(tok string) string {
	tok = strings.TrimSpace(tok)
	tok = strings.ReplaceAll(tok, "%2B", "+")
	return strings.ReplaceAll(tok, "%3D", "=")
}

func (c *Client) Platform() model.Platform { return model.PlatformTwitter }

type searchResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount       int64 `json:"like_count"`
		ImpressionCount int64 `json:"impression_count"`
	} `json:"public_metrics"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (c *Client) Search(ctx context.Context, keyword string) ([]model.Candidate, error) {
	if c.client == nil {
		return nil, source.NotConfigured(model.PlatformTwitter, "Twitter bearer token")
	}
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return nil, &source.Error{Platform: model.PlatformTwitter, Kind: source.KindNotConfigured, Err: err}
	}
	u.Path = path.Join(u.Path, "/tweets/search/recent")
	params := url.Values{}
	params.Set("query", keyword+" -is:retweet -is:reply")
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,verified")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, source.FromTransport(model.PlatformTwitter, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, source.FromTransport(model.PlatformTwitter, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if err != nil {
		return nil, source.FromTransport(model.PlatformTwitter, err)
	}
	if resp.StatusCode >= 300 {
		return nil, source.FromStatus(model.PlatformTwitter, resp.StatusCode, resp.Header, body)
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &source.Error{Platform: model.PlatformTwitter, Kind: source.KindBadResponse, Err: err}
	}

	users := make(map[string]string, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		users[u.ID] = u.Username
	}
	out := make([]model.Candidate, 0, len(parsed.Data))
	for _, t := range parsed.Data {
		text := source.UnescapeText(t.Text)
		username := users[t.AuthorID]
		title := "Tweet about " + keyword
		if username != "" {
			title = fmt.Sprintf("@%s: %s...", username, source.Truncate(text, titleRunes))
		}
		handle := username
		if handle == "" {
			handle = "i"
		}
		published, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			published = time.Now().UTC()
		}
		out = append(out, model.Candidate{
			Title:          title,
			Content:        text,
			Source:         model.PlatformTwitter,
			SourceURL:      fmt.Sprintf("https://twitter.com/%s/status/%s", handle, t.ID),
			RelevanceScore: relevance,
			PublishedAt:    published.UTC(),
			Views:          t.PublicMetrics.ImpressionCount,
			Likes:          t.PublicMetrics.LikeCount,
		})
	}
	c.log.Debug("[Twitter] search done", slog.String("keyword", keyword), slog.Int("results", len(out)))
	return out, nil
}
