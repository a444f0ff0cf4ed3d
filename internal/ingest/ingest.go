// Package ingest runs the hotspot check: every active keyword is sent to the
// adapters its source selection names, and new candidates are stored with a
// notification each.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hotspot/internal/linkcheck"
	"hotspot/internal/matcher"
	"hotspot/internal/model"
	"hotspot/internal/source"
)

const DefaultDedupWindow = 24 * time.Hour

// historyTimeout bounds the history write, which outlives the run deadline.
const historyTimeout = 10 * time.Second

// Store is the persistence the check needs.
type Store interface {
	ListActiveKeywords(ctx context.Context) ([]model.Keyword, error)
	HotspotExistsSince(ctx context.Context, title string, since time.Time) (bool, error)
	CreateHotspot(ctx context.Context, h model.Hotspot, keywordIDs ...string) (model.Hotspot, error)
	CreateNotification(ctx context.Context, hotspotID string) (model.Notification, error)
	AppendCheckHistory(ctx context.Context, status model.RunStatus, keywordsChecked, hotspotsFound int) (model.CheckHistory, error)
}

// Notifier is told about every stored hotspot. Errors are logged only.
type Notifier interface {
	HotspotCreated(ctx context.Context, h model.Hotspot) error
}

type Options struct {
	DedupWindow time.Duration
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

type Service struct {
	store    Store
	adapters *source.Registry
	notifier Notifier
	window   time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	lastMessage   string
	lastMessageAt time.Time
}

func New(st Store, adapters *source.Registry, opts Options) *Service {
	s := &Service{
		store:    st,
		adapters: adapters,
		notifier: opts.Notifier,
		window:   opts.DedupWindow,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.window <= 0 {
		s.window = DefaultDedupWindow
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type Result struct {
	KeywordsChecked int             `json:"keywordsChecked"`
	HotspotsFound   int             `json:"hotspotsFound"`
	Status          model.RunStatus `json:"status"`
}

// Run satisfies scheduler.Runner.
func (s *Service) Run(ctx context.Context) error {
	_, err := s.Check(ctx)
	return err
}

// Check runs one pass over the active keywords and appends exactly one
// history row. It fails without writing history only when the keyword list
// cannot be loaded or the history row itself cannot be written.
func (s *Service) Check(ctx context.Context) (Result, error) {
	runStart := time.Now()
	keywords, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading active keywords: %w", err)
	}
	names := make([]string, 0, len(keywords))
	for _, k := range keywords {
		names = append(names, k.Keyword)
	}
	s.progress("ingest: started", slog.Int("keywords", len(keywords)))

	res := Result{KeywordsChecked: len(keywords), Status: model.RunSuccess}
	adapterFailures := 0
	for i, kw := range keywords {
		kwStart := time.Now()
		found, failed, err := s.checkKeyword(ctx, kw, names)
		res.HotspotsFound += found
		adapterFailures += failed
		if err != nil {
			res.Status = model.RunPartial
			s.log.Error("ingest: keyword aborted", slog.String("keyword", kw.Keyword), slog.Any("error", err))
		}
		s.progress("ingest: keyword done",
			slog.Int("n", i+1),
			slog.Int("of", len(keywords)),
			slog.String("keyword", kw.Keyword),
			slog.Int("found", found),
			slog.Duration("took", time.Since(kwStart).Round(time.Millisecond)))
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if _, err := s.store.AppendCheckHistory(hctx, res.Status, res.KeywordsChecked, res.HotspotsFound); err != nil {
		return res, fmt.Errorf("recording check history: %w", err)
	}
	s.progress("ingest: all done",
		slog.Int("keywords", res.KeywordsChecked),
		slog.Int("hotspots", res.HotspotsFound),
		slog.Int("adapter_failures", adapterFailures),
		slog.String("status", string(res.Status)),
		slog.Duration("took", time.Since(runStart).Round(time.Millisecond)))
	return res, nil
}

// checkKeyword queries every selected adapter before storing anything.
// A non-nil error is a persistence failure; the remaining candidates of the
// keyword are dropped.
func (s *Service) checkKeyword(ctx context.Context, kw model.Keyword, names []string) (found, adapterFailures int, err error) {
	var candidates []model.Candidate
	for _, a := range s.adapters.For(kw.Source) {
		got, err := a.Search(ctx, kw.Keyword)
		if err != nil {
			if source.IsKind(err, source.KindNotConfigured) {
				s.log.Debug("ingest: adapter skipped", slog.String("platform", string(a.Platform())), slog.Any("reason", err))
				continue
			}
			adapterFailures++
			s.log.Warn("ingest: adapter failed",
				slog.String("platform", string(a.Platform())),
				slog.String("keyword", kw.Keyword),
				slog.Any("error", err))
			continue
		}
		candidates = append(candidates, got...)
	}

	for _, c := range candidates {
		stored, err := s.accept(ctx, kw, c, names)
		if stored {
			found++
		}
		if err != nil {
			return found, adapterFailures, err
		}
	}
	return found, adapterFailures, nil
}

func (s *Service) accept(ctx context.Context, kw model.Keyword, c model.Candidate, names []string) (bool, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return false, nil
	}
	now := s.now()
	dup, err := s.store.HotspotExistsSince(ctx, title, now.Add(-s.window))
	if err != nil {
		return false, err
	}
	if dup {
		s.log.Debug("ingest: duplicate skipped", slog.String("title", title))
		return false, nil
	}

	sourceURL := linkcheck.Normalize(c.SourceURL)
	if sourceURL == nil && c.SourceURL != "" {
		s.log.Debug("ingest: source url rejected", slog.String("url", c.SourceURL))
	}
	published := c.PublishedAt
	if published.IsZero() {
		published = now
	}
	h := model.Hotspot{
		Title:           title,
		Content:         c.Content,
		Source:          string(c.Source),
		SourceURL:       sourceURL,
		RelevanceScore:  clamp01(c.RelevanceScore),
		PublishedAt:     published,
		Views:           max(c.Views, 0),
		Likes:           max(c.Likes, 0),
		MatchedKeywords: matcher.MatchedKeywords(kw.Keyword, names, title, c.Content),
	}
	created, err := s.store.CreateHotspot(ctx, h, kw.ID)
	if err != nil {
		return false, err
	}
	if _, err := s.store.CreateNotification(ctx, created.ID); err != nil {
		return true, err
	}
	if s.notifier != nil {
		if err := s.notifier.HotspotCreated(ctx, created); err != nil {
			s.log.Warn("ingest: push notification failed", slog.String("hotspot", created.ID), slog.Any("error", err))
		}
	}
	return true, nil
}

func (s *Service) progress(msg string, attrs ...any) {
	s.log.Info(msg, attrs...)
	parts := []string{msg}
	for _, a := range attrs {
		if attr, ok := a.(slog.Attr); ok {
			parts = append(parts, attr.String())
		}
	}
	s.mu.Lock()
	s.lastMessage = strings.Join(parts, " ")
	s.lastMessageAt = time.Now()
	s.mu.Unlock()
}

// LastProgress returns the latest progress message and when it was logged.
func (s *Service) LastProgress() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessage, s.lastMessageAt
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
