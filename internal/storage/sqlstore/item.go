package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"feedsync/internal/dedup"
	"feedsync/internal/domain"
)

const itemColumns = "id, feed_id, hash, link, title, author, content, created_at, updated_at, read, star"

type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

// Create inserts item and fills in its ID. The hash is computed from title
// and content when the caller did not set one. An item with the same
// (feed_id, hash) yields domain.ErrConflict and leaves the stored row as is.
func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	exec := GetExecutor(ctx, s.db)

	if item.Hash == "" {
		item.Hash = dedup.Fingerprint(item.Title, item.Content)
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()

	query := exec.Rebind(`
		INSERT INTO items (
			feed_id, hash, link, title, author, content, created_at, updated_at, read, star
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT (feed_id, hash) DO NOTHING
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, exec, &id, query,
		item.FeedID,
		item.Hash,
		item.Link,
		item.Title,
		item.Author,
		item.Content,
		item.CreatedAt,
		item.UpdatedAt,
		item.Read,
		item.Star,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create item %s in feed %d: %w", item.Hash, item.FeedID, domain.ErrConflict)
	}
	if err != nil {
		return translate("create item", err)
	}

	item.ID = id
	return nil
}

func (s *ItemStore) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	exec := GetExecutor(ctx, s.db)

	var item domain.Item
	err := sqlx.GetContext(ctx, exec, &item, exec.Rebind("SELECT "+itemColumns+" FROM items WHERE id = ?"), id)
	if err != nil {
		return nil, translate(fmt.Sprintf("get item %d", id), err)
	}
	return &item, nil
}

// ListByFeed returns the feed's items, most recently updated first.
func (s *ItemStore) ListByFeed(ctx context.Context, feedID int64) ([]domain.Item, error) {
	return s.List(ctx, domain.ItemFilter{FeedID: feedID})
}

// List returns the items matching filter, most recently updated first.
func (s *ItemStore) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	exec := GetExecutor(ctx, s.db)

	var sb strings.Builder
	sb.WriteString("SELECT " + itemColumns + " FROM items")
	where, args := buildItemWhere(filter)
	sb.WriteString(where)
	sb.WriteString(" ORDER BY updated_at DESC, id DESC")

	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, filter.Offset)
		}
	}

	var items []domain.Item
	if err := sqlx.SelectContext(ctx, exec, &items, exec.Rebind(sb.String()), args...); err != nil {
		return nil, translate("list items", err)
	}
	return items, nil
}

// SetReadState is the only mutation applied to an item after creation.
func (s *ItemStore) SetReadState(ctx context.Context, id int64, read, star bool) error {
	exec := GetExecutor(ctx, s.db)

	res, err := exec.ExecContext(ctx, exec.Rebind("UPDATE items SET read = ?, star = ? WHERE id = ?"), read, star, id)
	if err != nil {
		return translate("set read state", err)
	}
	return requireAffected(res, fmt.Sprintf("set read state of item %d", id))
}

// MarkAllRead marks every unread item matching filter as read and returns how
// many changed. Limit and Offset are ignored.
func (s *ItemStore) MarkAllRead(ctx context.Context, filter domain.ItemFilter) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	filter.UnreadOnly = true
	where, args := buildItemWhere(filter)

	res, err := exec.ExecContext(ctx, exec.Rebind("UPDATE items SET read = ?"+where), append([]any{true}, args...)...)
	if err != nil {
		return 0, translate("mark all read", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "mark all read", Err: err}
	}
	return n, nil
}

func (s *ItemStore) CountUnread(ctx context.Context, feedID int64) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	var count int64
	err := sqlx.GetContext(ctx, exec, &count,
		exec.Rebind("SELECT COUNT(*) FROM items WHERE feed_id = ? AND read = ?"),
		feedID, false,
	)
	if err != nil {
		return 0, translate("count unread", err)
	}
	return count, nil
}

// CountUnreadByFeed returns unread counts keyed by feed ID. Feeds without
// unread items are absent from the map.
func (s *ItemStore) CountUnreadByFeed(ctx context.Context) (map[int64]int64, error) {
	exec := GetExecutor(ctx, s.db)

	rows, err := exec.QueryxContext(ctx,
		exec.Rebind("SELECT feed_id, COUNT(*) FROM items WHERE read = ? GROUP BY feed_id"),
		false,
	)
	if err != nil {
		return nil, translate("count unread by feed", err)
	}
	defer rows.Close()

	result := make(map[int64]int64)
	for rows.Next() {
		var feedID, count int64
		if err := rows.Scan(&feedID, &count); err != nil {
			return nil, translate("count unread by feed", err)
		}
		result[feedID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, translate("count unread by feed", err)
	}
	return result, nil
}

func (s *ItemStore) DeleteByFeed(ctx context.Context, feedID int64) error {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, exec.Rebind("DELETE FROM items WHERE feed_id = ?"), feedID); err != nil {
		return translate("delete feed items", err)
	}
	return nil
}

func buildItemWhere(filter domain.ItemFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.FeedID != 0 {
		conds = append(conds, "feed_id = ?")
		args = append(args, filter.FeedID)
	}
	if filter.TagID != 0 {
		conds = append(conds, "feed_id IN (SELECT feed_id FROM taggings WHERE tag_id = ?)")
		args = append(args, filter.TagID)
	}
	if filter.UnreadOnly {
		conds = append(conds, "read = ?")
		args = append(args, false)
	}
	if filter.StarredOnly {
		conds = append(conds, "star = ?")
		args = append(args, true)
	}
	if !filter.OlderThan.IsZero() {
		conds = append(conds, "updated_at <= ?")
		args = append(args, filter.OlderThan.UTC())
	}
	if !filter.NewerThan.IsZero() {
		conds = append(conds, "updated_at > ?")
		args = append(args, filter.NewerThan.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
