package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"hotspot/internal/model"
)

var keywordColumns = []string{"id", "keyword", "source", "is_active", "created_at"}

type keywordRow struct {
	ID        string `db:"id"`
	Keyword   string `db:"keyword"`
	Source    string `db:"source"`
	IsActive  bool   `db:"is_active"`
	CreatedAt int64  `db:"created_at"`
}

func (r keywordRow) toModel() model.Keyword {
	sel, err := model.ParseSourceSelection(r.Source)
	if err != nil {
		sel = model.SelectAll
	}
	return model.Keyword{
		ID:        r.ID,
		Keyword:   r.Keyword,
		Source:    sel,
		IsActive:  r.IsActive,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

func keywordsFromRows(rows []keywordRow) []model.Keyword {
	out := make([]model.Keyword, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

// KeywordPatch holds the optional fields of a keyword update.
type KeywordPatch struct {
	IsActive *bool
	Source   *model.SourceSelection
}

func (s *Store) ListKeywords(ctx context.Context) ([]model.Keyword, error) {
	query, args, err := sq.Select(keywordColumns...).From("keywords").
		OrderBy("created_at DESC", "rowid DESC").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []keywordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing keywords: %w", err)
	}
	return keywordsFromRows(rows), nil
}

// ListActiveKeywords returns active keywords in creation order.
func (s *Store) ListActiveKeywords(ctx context.Context) ([]model.Keyword, error) {
	query, args, err := sq.Select(keywordColumns...).From("keywords").
		Where(sq.Eq{"is_active": 1}).
		OrderBy("created_at ASC", "rowid ASC").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []keywordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing active keywords: %w", err)
	}
	return keywordsFromRows(rows), nil
}

func (s *Store) GetKeyword(ctx context.Context, id string) (model.Keyword, error) {
	query, args, err := sq.Select(keywordColumns...).From("keywords").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Keyword{}, err
	}
	var row keywordRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Keyword{}, ErrNotFound
		}
		return model.Keyword{}, fmt.Errorf("getting keyword %s: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) CreateKeyword(ctx context.Context, keyword string, source model.SourceSelection) (model.Keyword, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return model.Keyword{}, errors.New("empty keyword")
	}
	if !source.Valid() {
		return model.Keyword{}, fmt.Errorf("invalid source %v", source)
	}
	k := model.Keyword{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Source:    source,
		IsActive:  true,
		CreatedAt: s.now().UTC().Truncate(timeResolution),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (id, keyword, source, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.Keyword, k.Source.String(), boolInt(k.IsActive), toMillis(k.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Keyword{}, ErrDuplicate
		}
		return model.Keyword{}, fmt.Errorf("inserting keyword: %w", err)
	}
	return k, nil
}

func (s *Store) UpdateKeyword(ctx context.Context, id string, patch KeywordPatch) (model.Keyword, error) {
	set := map[string]any{}
	if patch.IsActive != nil {
		set["is_active"] = boolInt(*patch.IsActive)
	}
	if patch.Source != nil {
		if !patch.Source.Valid() {
			return model.Keyword{}, fmt.Errorf("invalid source %v", *patch.Source)
		}
		set["source"] = patch.Source.String()
	}
	if len(set) == 0 {
		return s.GetKeyword(ctx, id)
	}
	query, args, err := sq.Update("keywords").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Keyword{}, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Keyword{}, fmt.Errorf("updating keyword %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Keyword{}, ErrNotFound
	}
	return s.GetKeyword(ctx, id)
}

func (s *Store) DeleteKeyword(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting keyword %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
