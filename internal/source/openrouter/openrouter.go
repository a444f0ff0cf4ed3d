// Package openrouter asks a chat completion model on OpenRouter for trending
// items about a keyword.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"hotspot/internal/model"
	"hotspot/internal/source"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openrouter/free"
	DefaultTitle   = "AI Hotspot Detection Tool"
)

const systemPrompt = `You identify current trends and hot topics. Answer with a single JSON object describing one trending item, using real URLs from well known platforms such as GitHub, Twitter, Reddit or TechCrunch.`

const userPromptFormat = `Find the latest trending item about: %s.
Reply with one JSON object with these fields:
- title: headline
- content: short summary, two or three sentences
- source_url: direct URL of the article, post or page
- source: platform name
- relevance_score: number between 0 and 1
- published_date: ISO 8601 date
- views: estimated views (optional)
- likes: estimated likes or upvotes (optional)
Do not wrap the JSON in prose.`

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

type Client struct {
	cfg         Config
	completions *openai.ChatCompletionService
	log         *slog.Logger
	now         func() time.Time
}

var _ source.Adapter = (*Client)(nil)

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{cfg: cfg, log: log, now: time.Now}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return c
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
		option.WithHeader("X-Title", cfg.Title),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	c.completions = openai.NewClient(opts...).Chat.Completions
	return c
}

func (c *Client) Platform() model.Platform { return model.PlatformOpenRouter }

// Search returns exactly one candidate on success: either the item the model
// described or a synthetic one built from its raw reply.
func (c *Client) Search(ctx context.Context, keyword string) ([]model.Candidate, error) {
	if c.completions == nil {
		return nil, source.NotConfigured(model.PlatformOpenRouter, "OpenRouter API key")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf(userPromptFormat, keyword)),
		}),
		Model:       openai.F(openai.ChatModel(c.cfg.Model)),
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(1000),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &source.Error{Platform: model.PlatformOpenRouter, Kind: source.KindBadResponse, Err: errors.New("no choices in completion")}
	}
	text := resp.Choices[0].Message.Content
	cand, parsed := ParseReply(text, keyword, c.now())
	c.log.Debug("[OpenRouter] completion received",
		slog.String("keyword", keyword),
		slog.Bool("structured", parsed),
		slog.Duration("took", time.Since(start).Round(time.Millisecond)))
	return []model.Candidate{cand}, nil
}

func classify(err error) *source.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		if header == nil {
			header = http.Header{}
		}
		se := source.FromStatus(model.PlatformOpenRouter, apiErr.StatusCode, header, nil)
		se.Err = err
		return se
	}
	return source.FromTransport(model.PlatformOpenRouter, err)
}
