package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"feedsync/internal/domain"
)

type TagStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db, tm: NewTransactionManager(db)}
}

// Create inserts a tag. Names are unique; a taken name yields
// domain.ErrConflict.
func (s *TagStore) Create(ctx context.Context, name string) (*domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create tag: empty name")
	}

	var id int64
	err := sqlx.GetContext(ctx, exec, &id,
		exec.Rebind("INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING RETURNING id"),
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create tag %q: %w", name, domain.ErrConflict)
	}
	if err != nil {
		return nil, translate("create tag", err)
	}

	return &domain.Tag{ID: id, Name: name}, nil
}

func (s *TagStore) GetByID(ctx context.Context, id int64) (*domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	var tag domain.Tag
	if err := sqlx.GetContext(ctx, exec, &tag, exec.Rebind("SELECT id, name FROM tags WHERE id = ?"), id); err != nil {
		return nil, translate(fmt.Sprintf("get tag %d", id), err)
	}
	return &tag, nil
}

func (s *TagStore) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	var tag domain.Tag
	if err := sqlx.GetContext(ctx, exec, &tag, exec.Rebind("SELECT id, name FROM tags WHERE name = ?"), name); err != nil {
		return nil, translate(fmt.Sprintf("get tag %q", name), err)
	}
	return &tag, nil
}

func (s *TagStore) List(ctx context.Context) ([]domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	var tags []domain.Tag
	if err := sqlx.SelectContext(ctx, exec, &tags, "SELECT id, name FROM tags ORDER BY name"); err != nil {
		return nil, translate("list tags", err)
	}
	return tags, nil
}

// Delete detaches the tag from every feed and removes it.
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	return s.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		if _, err := exec.ExecContext(txCtx, exec.Rebind("DELETE FROM taggings WHERE tag_id = ?"), id); err != nil {
			return translate("delete tag taggings", err)
		}

		res, err := exec.ExecContext(txCtx, exec.Rebind("DELETE FROM tags WHERE id = ?"), id)
		if err != nil {
			return translate("delete tag", err)
		}
		return requireAffected(res, fmt.Sprintf("delete tag %d", id))
	})
}

// ListTaggings returns every feed-tag association.
func (s *TagStore) ListTaggings(ctx context.Context) ([]domain.Tagging, error) {
	exec := GetExecutor(ctx, s.db)

	var taggings []domain.Tagging
	if err := sqlx.SelectContext(ctx, exec, &taggings, "SELECT feed_id, tag_id FROM taggings ORDER BY tag_id, feed_id"); err != nil {
		return nil, translate("list taggings", err)
	}
	return taggings, nil
}
