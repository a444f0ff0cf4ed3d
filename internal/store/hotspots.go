package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"hotspot/internal/model"
)

var hotspotColumns = []string{
	"id", "title", "content", "source", "source_url", "relevance_score",
	"published_at", "views", "likes", "matched_keywords", "created_at",
}

type hotspotRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Content         string         `db:"content"`
	Source          string         `db:"source"`
	SourceURL       sql.NullString `db:"source_url"`
	RelevanceScore  float64        `db:"relevance_score"`
	PublishedAt     int64          `db:"published_at"`
	Views           int64          `db:"views"`
	Likes           int64          `db:"likes"`
	MatchedKeywords string         `db:"matched_keywords"`
	CreatedAt       int64          `db:"created_at"`
}

func (r hotspotRow) toModel() model.Hotspot {
	h := model.Hotspot{
		ID:              r.ID,
		Title:           r.Title,
		Content:         r.Content,
		Source:          r.Source,
		SourceURL:       stringPtr(r.SourceURL),
		RelevanceScore:  r.RelevanceScore,
		PublishedAt:     fromMillis(r.PublishedAt),
		Views:           r.Views,
		Likes:           r.Likes,
		MatchedKeywords: []string{},
		CreatedAt:       fromMillis(r.CreatedAt),
		Keywords:        []model.Keyword{},
	}
	_ = json.Unmarshal([]byte(r.MatchedKeywords), &h.MatchedKeywords)
	if h.MatchedKeywords == nil {
		h.MatchedKeywords = []string{}
	}
	return h
}

// HotspotFilter selects one page of hotspots, newest first.
type HotspotFilter struct {
	Source string
	Offset int
	Limit  int
}

// HotspotExistsSince reports whether a hotspot with exactly this title was
// created at or after since.
func (s *Store) HotspotExistsSince(ctx context.Context, title string, since time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM hotspots WHERE title = ? AND created_at >= ?`, title, toMillis(since))
	if err != nil {
		return false, fmt.Errorf("checking recent hotspot: %w", err)
	}
	return n > 0, nil
}

// CreateHotspot inserts h and links it to keywordIDs in one transaction.
// ID and CreatedAt are assigned here.
func (s *Store) CreateHotspot(ctx context.Context, h model.Hotspot, keywordIDs ...string) (model.Hotspot, error) {
	h.ID = uuid.NewString()
	h.CreatedAt = s.now().UTC().Truncate(timeResolution)
	h.PublishedAt = h.PublishedAt.UTC().Truncate(timeResolution)
	if h.MatchedKeywords == nil {
		h.MatchedKeywords = []string{}
	}
	matched, err := json.Marshal(h.MatchedKeywords)
	if err != nil {
		return model.Hotspot{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Hotspot{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hotspots (
			id, title, content, source, source_url, relevance_score,
			published_at, views, likes, matched_keywords, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Title, h.Content, h.Source, nullString(h.SourceURL), h.RelevanceScore,
		toMillis(h.PublishedAt), h.Views, h.Likes, string(matched), toMillis(h.CreatedAt))
	if err != nil {
		return model.Hotspot{}, fmt.Errorf("inserting hotspot: %w", err)
	}
	for _, kid := range keywordIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO hotspot_keywords (hotspot_id, keyword_id) VALUES (?, ?)`, h.ID, kid); err != nil {
			return model.Hotspot{}, fmt.Errorf("linking hotspot to keyword %s: %w", kid, err)
		}
	}
	// Keywords are read inside the transaction so an error always means
	// nothing was stored.
	h.Keywords = []model.Keyword{}
	if len(keywordIDs) > 0 {
		query, args, err := sq.Select("k.id", "k.keyword", "k.source", "k.is_active", "k.created_at").
			From("hotspot_keywords hk").
			Join("keywords k ON k.id = hk.keyword_id").
			Where(sq.Eq{"hk.hotspot_id": h.ID}).
			OrderBy("k.created_at ASC").ToSql()
		if err != nil {
			return model.Hotspot{}, err
		}
		var rows []keywordRow
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return model.Hotspot{}, fmt.Errorf("loading hotspot keywords: %w", err)
		}
		h.Keywords = keywordsFromRows(rows)
	}
	if err := tx.Commit(); err != nil {
		return model.Hotspot{}, fmt.Errorf("committing hotspot: %w", err)
	}
	return h, nil
}

func (s *Store) GetHotspot(ctx context.Context, id string) (model.Hotspot, error) {
	query, args, err := sq.Select(hotspotColumns...).From("hotspots").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Hotspot{}, err
	}
	var row hotspotRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Hotspot{}, ErrNotFound
		}
		return model.Hotspot{}, fmt.Errorf("getting hotspot %s: %w", id, err)
	}
	out := []model.Hotspot{row.toModel()}
	if err := s.attachKeywords(ctx, out); err != nil {
		return model.Hotspot{}, err
	}
	return out[0], nil
}

// ListHotspots returns one page and the total number of matching rows.
func (s *Store) ListHotspots(ctx context.Context, f HotspotFilter) ([]model.Hotspot, int, error) {
	where := sq.And{}
	if f.Source != "" {
		where = append(where, sq.Eq{"source": f.Source})
	}

	countQuery, countArgs, err := sq.Select("COUNT(1)").From("hotspots").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("counting hotspots: %w", err)
	}

	b := sq.Select(hotspotColumns...).From("hotspots").Where(where).
		OrderBy("created_at DESC", "rowid DESC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	items, err := s.selectHotspots(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) LatestHotspots(ctx context.Context, limit int) ([]model.Hotspot, error) {
	return s.selectHotspots(ctx, sq.Select(hotspotColumns...).From("hotspots").
		OrderBy("created_at DESC", "rowid DESC").Limit(uint64(limit)))
}

// SearchHotspots does a substring match over title and content.
func (s *Store) SearchHotspots(ctx context.Context, q string, limit int) ([]model.Hotspot, error) {
	return s.selectHotspots(ctx, sq.Select(hotspotColumns...).From("hotspots").
		Where(containsAny(q, "title", "content")).
		OrderBy("created_at DESC", "rowid DESC").Limit(uint64(limit)))
}

func (s *Store) selectHotspots(ctx context.Context, b sq.SelectBuilder) ([]model.Hotspot, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []hotspotRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("selecting hotspots: %w", err)
	}
	out := make([]model.Hotspot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	if err := s.attachKeywords(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) hotspotsByID(ctx context.Context, ids []string) (map[string]model.Hotspot, error) {
	out := make(map[string]model.Hotspot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.selectHotspots(ctx, sq.Select(hotspotColumns...).From("hotspots").Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}
	for _, h := range items {
		out[h.ID] = h
	}
	return out, nil
}

type hotspotKeywordRow struct {
	HotspotID string `db:"hotspot_id"`
	keywordRow
}

// attachKeywords fills Keywords on every hotspot with a single join query.
func (s *Store) attachKeywords(ctx context.Context, hotspots []model.Hotspot) error {
	if len(hotspots) == 0 {
		return nil
	}
	ids := make([]string, 0, len(hotspots))
	for _, h := range hotspots {
		ids = append(ids, h.ID)
	}
	query, args, err := sq.Select("hk.hotspot_id", "k.id", "k.keyword", "k.source", "k.is_active", "k.created_at").
		From("hotspot_keywords hk").
		Join("keywords k ON k.id = hk.keyword_id").
		Where(sq.Eq{"hk.hotspot_id": ids}).
		OrderBy("k.created_at ASC").ToSql()
	if err != nil {
		return err
	}
	var rows []hotspotKeywordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("loading hotspot keywords: %w", err)
	}
	byHotspot := make(map[string][]model.Keyword, len(hotspots))
	for _, r := range rows {
		byHotspot[r.HotspotID] = append(byHotspot[r.HotspotID], r.keywordRow.toModel())
	}
	for i := range hotspots {
		if ks, ok := byHotspot[hotspots[i].ID]; ok {
			hotspots[i].Keywords = ks
		} else {
			hotspots[i].Keywords = []model.Keyword{}
		}
	}
	return nil
}
