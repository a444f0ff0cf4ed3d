package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hotspot/internal/model"
)

type historyRow struct {
	ID              string `db:"id"`
	Status          string `db:"status"`
	KeywordsChecked int    `db:"keywords_checked"`
	HotspotsFound   int    `db:"hotspots_found"`
	CreatedAt       int64  `db:"created_at"`
}

func (s *Store) AppendCheckHistory(ctx context.Context, status model.RunStatus, keywordsChecked, hotspotsFound int) (model.CheckHistory, error) {
	h := model.CheckHistory{
		ID:              uuid.NewString(),
		Status:          status,
		KeywordsChecked: keywordsChecked,
		HotspotsFound:   hotspotsFound,
		CreatedAt:       s.now().UTC().Truncate(timeResolution),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_history (id, status, keywords_checked, hotspots_found, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.ID, string(h.Status), h.KeywordsChecked, h.HotspotsFound, toMillis(h.CreatedAt))
	if err != nil {
		return model.CheckHistory{}, fmt.Errorf("appending check history: %w", err)
	}
	return h, nil
}

func (s *Store) ListCheckHistory(ctx context.Context, limit int) ([]model.CheckHistory, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, status, keywords_checked, hotspots_found, created_at
		FROM check_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing check history: %w", err)
	}
	out := make([]model.CheckHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CheckHistory{
			ID:              r.ID,
			Status:          model.RunStatus(r.Status),
			KeywordsChecked: r.KeywordsChecked,
			HotspotsFound:   r.HotspotsFound,
			CreatedAt:       fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}

type sourceCount struct {
	Source string `db:"source"`
	N      int    `db:"n"`
}

// Statistics counts are computed fresh on every call. recentHotspots covers
// the window ending at now.
func (s *Store) Statistics(ctx context.Context, now time.Time, window time.Duration) (model.Statistics, error) {
	stats := model.Statistics{BySource: map[string]int{}}
	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&stats.TotalHotspots, `SELECT COUNT(1) FROM hotspots`, nil},
		{&stats.ActiveKeywords, `SELECT COUNT(1) FROM keywords WHERE is_active = 1`, nil},
		{&stats.UnreadNotifications, `SELECT COUNT(1) FROM notifications WHERE is_read = 0`, nil},
		{&stats.RecentHotspots, `SELECT COUNT(1) FROM hotspots WHERE created_at >= ?`, []any{toMillis(now.Add(-window))}},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query, c.args...); err != nil {
			return model.Statistics{}, fmt.Errorf("computing statistics: %w", err)
		}
	}
	var rows []sourceCount
	if err := s.db.SelectContext(ctx, &rows, `SELECT source, COUNT(1) AS n FROM hotspots GROUP BY source`); err != nil {
		return model.Statistics{}, fmt.Errorf("grouping hotspots by source: %w", err)
	}
	for _, r := range rows {
		stats.BySource[r.Source] = r.N
	}
	return stats, nil
}
