package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"hotspot/internal/model"
)

type notificationRow struct {
	ID        string `db:"id"`
	HotspotID string `db:"hotspot_id"`
	IsRead    bool   `db:"is_read"`
	CreatedAt int64  `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:        r.ID,
		HotspotID: r.HotspotID,
		IsRead:    r.IsRead,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

func (s *Store) CreateNotification(ctx context.Context, hotspotID string) (model.Notification, error) {
	n := model.Notification{
		ID:        uuid.NewString(),
		HotspotID: hotspotID,
		CreatedAt: s.now().UTC().Truncate(timeResolution),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, hotspot_id, is_read, created_at) VALUES (?, ?, 0, ?)`,
		n.ID, n.HotspotID, toMillis(n.CreatedAt))
	if err != nil {
		return model.Notification{}, fmt.Errorf("inserting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns notifications newest first with their hotspot
// and its keywords embedded.
func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	b := sq.Select("id", "hotspot_id", "is_read", "created_at").From("notifications").
		OrderBy("created_at DESC", "rowid DESC")
	if unreadOnly {
		b = b.Where(sq.Eq{"is_read": 0})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	seen := map[string]bool{}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if !seen[r.HotspotID] {
			seen[r.HotspotID] = true
			ids = append(ids, r.HotspotID)
		}
	}
	hotspots, err := s.hotspotsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n := r.toModel()
		if h, ok := hotspots[r.HotspotID]; ok {
			n.Hotspot = &h
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (model.Notification, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return model.Notification{}, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Notification{}, ErrNotFound
	}
	var row notificationRow
	err = s.db.GetContext(ctx, &row,
		`SELECT id, hotspot_id, is_read, created_at FROM notifications WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotFound
		}
		return model.Notification{}, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE is_read = 0`)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CountUnreadNotifications(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM notifications WHERE is_read = 0`); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}
