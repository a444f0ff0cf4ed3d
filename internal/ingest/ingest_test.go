package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspot/internal/db"
	"hotspot/internal/model"
	"hotspot/internal/source"
	"hotspot/internal/store"
)

// fakeAdapter returns canned candidates per keyword and records every call.
type fakeAdapter struct {
	platform model.Platform
	results  map[string][]model.Candidate
	err      error
	calls    *[]string
}

func (f fakeAdapter) Platform() model.Platform { return f.platform }

func (f fakeAdapter) Search(_ context.Context, keyword string) ([]model.Candidate, error) {
	if f.calls != nil {
		*f.calls = append(*f.calls, string(f.platform)+":"+keyword)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := append([]model.Candidate(nil), f.results[keyword]...)
	for i := range out {
		out[i].Source = f.platform
	}
	return out, nil
}

// blockingAdapter waits for the run context to end.
type blockingAdapter struct {
	platform model.Platform
}

func (b blockingAdapter) Platform() model.Platform { return b.platform }

func (b blockingAdapter) Search(ctx context.Context, _ string) ([]model.Candidate, error) {
	<-ctx.Done()
	return nil, source.FromTransport(b.platform, ctx.Err())
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (n *recordingNotifier) HotspotCreated(_ context.Context, h model.Hotspot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, h.Title)
	return n.err
}

type failingStore struct {
	*store.Store
	failTitle string
}

func (f failingStore) CreateHotspot(ctx context.Context, h model.Hotspot, keywordIDs ...string) (model.Hotspot, error) {
	if h.Title == f.failTitle {
		return model.Hotspot{}, errors.New("disk full")
	}
	return f.Store.CreateHotspot(ctx, h, keywordIDs...)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	s := store.New(d)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addKeyword(t *testing.T, s *store.Store, kw string, sel model.SourceSelection) model.Keyword {
	t.Helper()
	k, err := s.CreateKeyword(context.Background(), kw, sel)
	require.NoError(t, err)
	return k
}

func TestCheckQueriesSelectedAdapters(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "AI", model.SelectAll)
	addKeyword(t, s, "rust", model.SelectGitHub)
	off := addKeyword(t, s, "paused", model.SelectAll)
	inactive := false
	_, err := s.UpdateKeyword(context.Background(), off.ID, store.KeywordPatch{IsActive: &inactive})
	require.NoError(t, err)

	var calls []string
	reg := source.NewRegistry(
		fakeAdapter{platform: model.PlatformTwitter, calls: &calls},
		fakeAdapter{platform: model.PlatformGitHub, calls: &calls},
		fakeAdapter{platform: model.PlatformOpenRouter, calls: &calls},
	)
	res, err := New(s, reg, Options{}).Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"OpenRouter:AI", "GitHub:AI", "Twitter:AI", "GitHub:rust"}, calls)
	assert.Equal(t, 2, res.KeywordsChecked)
	assert.Zero(t, res.HotspotsFound)
	assert.Equal(t, model.RunSuccess, res.Status)
}

func TestCheckStoresCandidates(t *testing.T) {
	s := newStore(t)
	ai := addKeyword(t, s, "AI", model.SelectAll)
	addKeyword(t, s, "agents", model.SelectGitHub)

	reg := source.NewRegistry(
		fakeAdapter{platform: model.PlatformOpenRouter, results: map[string][]model.Candidate{
			"AI": {{Title: "AI agents take over", Content: "agents everywhere", SourceURL: "https://example.com/fake", RelevanceScore: 1.7, Views: -3}},
		}},
		fakeAdapter{platform: model.PlatformGitHub, results: map[string][]model.Candidate{
			"AI": {{Title: "org/ai-repo", SourceURL: "https://github.com/org/ai-repo", RelevanceScore: 0.85, Likes: 900}},
		}},
		fakeAdapter{platform: model.PlatformTwitter, err: source.NotConfigured(model.PlatformTwitter, "token")},
	)
	notifier := &recordingNotifier{}
	svc := New(s, reg, Options{Notifier: notifier})
	res, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.HotspotsFound)
	assert.Equal(t, model.RunSuccess, res.Status)

	items, total, err := s.ListHotspots(context.Background(), store.HotspotFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	byTitle := map[string]model.Hotspot{}
	for _, h := range items {
		byTitle[h.Title] = h
	}

	fake := byTitle["AI agents take over"]
	assert.Nil(t, fake.SourceURL, "placeholder url dropped")
	assert.Equal(t, 1.0, fake.RelevanceScore)
	assert.Zero(t, fake.Views)
	assert.Equal(t, "OpenRouter", fake.Source)
	assert.Equal(t, []string{"AI", "agents"}, fake.MatchedKeywords)
	require.Len(t, fake.Keywords, 1)
	assert.Equal(t, ai.ID, fake.Keywords[0].ID)

	repo := byTitle["org/ai-repo"]
	require.NotNil(t, repo.SourceURL)
	assert.Equal(t, "https://github.com/org/ai-repo", *repo.SourceURL)
	assert.Equal(t, int64(900), repo.Likes)

	unread, err := s.CountUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, unread)
	assert.ElementsMatch(t, []string{"AI agents take over", "org/ai-repo"}, notifier.titles)

	msg, at := svc.LastProgress()
	assert.Contains(t, msg, "ingest: all done")
	assert.False(t, at.IsZero())
}

func TestCheckDeduplicates(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "AI", model.SelectAll)
	addKeyword(t, s, "LLM", model.SelectGitHub)

	same := []model.Candidate{{Title: "  Same headline "}}
	reg := source.NewRegistry(
		fakeAdapter{platform: model.PlatformOpenRouter, results: map[string][]model.Candidate{"AI": same}},
		fakeAdapter{platform: model.PlatformGitHub, results: map[string][]model.Candidate{"AI": same, "LLM": same}},
		fakeAdapter{platform: model.PlatformTwitter, results: map[string][]model.Candidate{"AI": {{Title: ""}}}},
	)
	svc := New(s, reg, Options{})

	res, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.HotspotsFound)

	res, err = svc.Check(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.HotspotsFound, "second run inside the window")

	_, total, err := s.ListHotspots(context.Background(), store.HotspotFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	hist, err := s.ListCheckHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestCheckAdapterFailuresKeepRunning(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "AI", model.SelectAll)

	reg := source.NewRegistry(
		fakeAdapter{platform: model.PlatformOpenRouter, err: &source.Error{Platform: model.PlatformOpenRouter, Kind: source.KindRateLimited}},
		fakeAdapter{platform: model.PlatformGitHub, err: &source.Error{Platform: model.PlatformGitHub, Kind: source.KindAuth, Status: 401}},
		fakeAdapter{platform: model.PlatformTwitter, results: map[string][]model.Candidate{"AI": {{Title: "tweet"}}}},
	)
	res, err := New(s, reg, Options{}).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, res.Status)
	assert.Equal(t, 1, res.HotspotsFound)

	hist, err := s.ListCheckHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.RunSuccess, hist[0].Status)
	assert.Equal(t, 1, hist[0].KeywordsChecked)
	assert.Equal(t, 1, hist[0].HotspotsFound)
}

func TestCheckPersistenceFailureIsPartial(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "AI", model.SelectGitHub)
	addKeyword(t, s, "rust", model.SelectGitHub)

	reg := source.NewRegistry(fakeAdapter{platform: model.PlatformGitHub, results: map[string][]model.Candidate{
		"AI":   {{Title: "first"}, {Title: "boom"}, {Title: "never stored"}},
		"rust": {{Title: "rust thing"}},
	}})
	res, err := New(failingStore{Store: s, failTitle: "boom"}, reg, Options{}).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, res.Status)
	assert.Equal(t, 2, res.HotspotsFound)

	items, _, err := s.ListHotspots(context.Background(), store.HotspotFilter{})
	require.NoError(t, err)
	var titles []string
	for _, h := range items {
		titles = append(titles, h.Title)
	}
	assert.ElementsMatch(t, []string{"first", "rust thing"}, titles)

	hist, err := s.ListCheckHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.RunPartial, hist[0].Status)
}

func TestCheckDeadlineStillRecordsHistory(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "golang", model.SelectGitHub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := New(s, source.NewRegistry(blockingAdapter{platform: model.PlatformGitHub}), Options{}).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, res.Status)
	assert.Zero(t, res.HotspotsFound)

	hist, err := s.ListCheckHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 1, hist[0].KeywordsChecked)
}

func TestCheckNotifierErrorIgnored(t *testing.T) {
	s := newStore(t)
	addKeyword(t, s, "AI", model.SelectGitHub)
	reg := source.NewRegistry(fakeAdapter{platform: model.PlatformGitHub, results: map[string][]model.Candidate{
		"AI": {{Title: "a"}, {Title: "b"}},
	}})
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	res, err := New(s, reg, Options{Notifier: notifier}).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.HotspotsFound)
	assert.Equal(t, model.RunSuccess, res.Status)
	assert.Len(t, notifier.titles, 2)
}

func TestCheckNoKeywords(t *testing.T) {
	s := newStore(t)
	res, err := New(s, source.NewRegistry(), Options{}).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Status: model.RunSuccess}, res)

	hist, err := s.ListCheckHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}
