package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"feedsync/internal/domain"
)

const feedColumns = "id, title, feed_uri, site_uri, updated_at"

type FeedStore struct {
	db *sqlx.DB
}

func NewFeedStore(db *sqlx.DB) *FeedStore {
	return &FeedStore{db: db}
}

// Create inserts feed and fills in its ID. UpdatedAt defaults to now. A feed
// with the same feed_uri yields domain.ErrConflict.
func (s *FeedStore) Create(ctx context.Context, feed *domain.Feed) error {
	exec := GetExecutor(ctx, s.db)

	if feed.UpdatedAt.IsZero() {
		feed.UpdatedAt = time.Now()
	}
	feed.UpdatedAt = feed.UpdatedAt.UTC()

	query := exec.Rebind(`
		INSERT INTO feeds (title, feed_uri, site_uri, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_uri) DO NOTHING
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, exec, &id, query, feed.Title, feed.FeedURI, feed.SiteURI, feed.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create feed %q: %w", feed.FeedURI, domain.ErrConflict)
	}
	if err != nil {
		return translate("create feed", err)
	}

	feed.ID = id
	return nil
}

func (s *FeedStore) GetByID(ctx context.Context, id int64) (*domain.Feed, error) {
	exec := GetExecutor(ctx, s.db)

	var feed domain.Feed
	err := sqlx.GetContext(ctx, exec, &feed, exec.Rebind("SELECT "+feedColumns+" FROM feeds WHERE id = ?"), id)
	if err != nil {
		return nil, translate(fmt.Sprintf("get feed %d", id), err)
	}
	return &feed, nil
}

func (s *FeedStore) GetByURI(ctx context.Context, uri string) (*domain.Feed, error) {
	exec := GetExecutor(ctx, s.db)

	var feed domain.Feed
	err := sqlx.GetContext(ctx, exec, &feed, exec.Rebind("SELECT "+feedColumns+" FROM feeds WHERE feed_uri = ?"), uri)
	if err != nil {
		return nil, translate(fmt.Sprintf("get feed %q", uri), err)
	}
	return &feed, nil
}

// List returns every feed ordered by ID.
func (s *FeedStore) List(ctx context.Context) ([]domain.Feed, error) {
	exec := GetExecutor(ctx, s.db)

	var feeds []domain.Feed
	if err := sqlx.SelectContext(ctx, exec, &feeds, "SELECT "+feedColumns+" FROM feeds ORDER BY id"); err != nil {
		return nil, translate("list feeds", err)
	}
	return feeds, nil
}

// Save persists the mutable fields of an existing feed.
func (s *FeedStore) Save(ctx context.Context, feed *domain.Feed) error {
	exec := GetExecutor(ctx, s.db)

	query := exec.Rebind(`
		UPDATE feeds SET title = ?, feed_uri = ?, site_uri = ?, updated_at = ?
		WHERE id = ?`)

	res, err := exec.ExecContext(ctx, query, feed.Title, feed.FeedURI, feed.SiteURI, feed.UpdatedAt.UTC(), feed.ID)
	if err != nil {
		return translate("save feed", err)
	}
	return requireAffected(res, fmt.Sprintf("save feed %d", feed.ID))
}

// Delete removes the feed row. Items and taggings go with it through the
// foreign keys; callers that need the removal to be explicit delete them first
// in the same transaction.
func (s *FeedStore) Delete(ctx context.Context, id int64) error {
	exec := GetExecutor(ctx, s.db)

	res, err := exec.ExecContext(ctx, exec.Rebind("DELETE FROM feeds WHERE id = ?"), id)
	if err != nil {
		return translate("delete feed", err)
	}
	return requireAffected(res, fmt.Sprintf("delete feed %d", id))
}

func (s *FeedStore) ListTags(ctx context.Context, feedID int64) ([]domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	query := exec.Rebind(`
		SELECT t.id, t.name
		FROM tags t
		INNER JOIN taggings tg ON tg.tag_id = t.id
		WHERE tg.feed_id = ?
		ORDER BY t.name`)

	var tags []domain.Tag
	if err := sqlx.SelectContext(ctx, exec, &tags, query, feedID); err != nil {
		return nil, translate("list feed tags", err)
	}
	return tags, nil
}

// AddTagging attaches a tag to a feed. Attaching twice is a no-op.
func (s *FeedStore) AddTagging(ctx context.Context, feedID, tagID int64) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx,
		exec.Rebind("INSERT INTO taggings (feed_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING"),
		feedID, tagID,
	)
	if err != nil {
		return translate("add tagging", err)
	}
	return nil
}

func (s *FeedStore) RemoveTagging(ctx context.Context, feedID, tagID int64) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx,
		exec.Rebind("DELETE FROM taggings WHERE feed_id = ? AND tag_id = ?"),
		feedID, tagID,
	)
	if err != nil {
		return translate("remove tagging", err)
	}
	return nil
}

func (s *FeedStore) DeleteTaggings(ctx context.Context, feedID int64) error {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, exec.Rebind("DELETE FROM taggings WHERE feed_id = ?"), feedID); err != nil {
		return translate("delete feed taggings", err)
	}
	return nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
