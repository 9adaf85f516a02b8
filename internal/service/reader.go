package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"feedsync/internal/domain"
)

// ErrInvalidInput marks requests the read path refuses before touching the
// store.
var ErrInvalidInput = errors.New("invalid input")

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

// ReaderService serves the read path: listings, read state and tags. It never
// fetches.
type ReaderService struct {
	feeds  FeedStore
	items  ItemStore
	tags   TagStore
	logger *slog.Logger
}

func NewReaderService(feeds FeedStore, items ItemStore, tags TagStore, logger *slog.Logger) *ReaderService {
	return &ReaderService{
		feeds:  feeds,
		items:  items,
		tags:   tags,
		logger: logger.With("component", "reader"),
	}
}

func (r *ReaderService) ListFeeds(ctx context.Context) ([]domain.FeedWithTags, error) {
	feeds, err := r.feeds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	result := make([]domain.FeedWithTags, 0, len(feeds))
	for _, f := range feeds {
		tags, err := r.feeds.ListTags(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("list tags of feed %d: %w", f.ID, err)
		}
		if tags == nil {
			tags = []domain.Tag{}
		}
		result = append(result, domain.FeedWithTags{Feed: f, Tags: tags})
	}
	return result, nil
}

func (r *ReaderService) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	return r.feeds.GetByID(ctx, id)
}

func (r *ReaderService) RenameFeed(ctx context.Context, id int64, title string) error {
	feed, err := r.feeds.GetByID(ctx, id)
	if err != nil {
		return err
	}

	feed.Title = strings.TrimSpace(title)
	if err := r.feeds.Save(ctx, feed); err != nil {
		return fmt.Errorf("rename feed: %w", err)
	}
	return nil
}

// ListItems pages through items, newest first. A zero limit falls back to
// the default page size.
func (r *ReaderService) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidInput)
	}
	filter.Limit = PageLimit(filter.Limit)

	items, err := r.items.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// PageLimit is the page size ListItems actually uses for a requested limit.
func PageLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func (r *ReaderService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return r.items.GetByID(ctx, id)
}

// SetReadState changes the flags given as non-nil and keeps the others.
func (r *ReaderService) SetReadState(ctx context.Context, id int64, read, star *bool) error {
	item, err := r.items.GetByID(ctx, id)
	if err != nil {
		return err
	}

	newRead, newStar := item.Read, item.Star
	if read != nil {
		newRead = *read
	}
	if star != nil {
		newStar = *star
	}
	if newRead == item.Read && newStar == item.Star {
		return nil
	}

	return r.items.SetReadState(ctx, id, newRead, newStar)
}

func (r *ReaderService) MarkAllRead(ctx context.Context, filter domain.ItemFilter) (int64, error) {
	n, err := r.items.MarkAllRead(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}

	r.logger.Debug("marked items read", "count", n, "feed_id", filter.FeedID, "tag_id", filter.TagID)
	return n, nil
}

func (r *ReaderService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return r.tags.List(ctx)
}

func (r *ReaderService) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	return r.tags.GetByName(ctx, name)
}

func (r *ReaderService) CreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty tag name", ErrInvalidInput)
	}
	return r.tags.Create(ctx, name)
}

func (r *ReaderService) DeleteTag(ctx context.Context, id int64) error {
	return r.tags.Delete(ctx, id)
}

// TagFeed attaches the named tag to a feed, creating the tag when needed.
func (r *ReaderService) TagFeed(ctx context.Context, feedID int64, name string) (*domain.Tag, error) {
	if _, err := r.feeds.GetByID(ctx, feedID); err != nil {
		return nil, err
	}

	tag, err := r.ensureTag(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := r.feeds.AddTagging(ctx, feedID, tag.ID); err != nil {
		return nil, fmt.Errorf("tag feed: %w", err)
	}
	return tag, nil
}

// UntagFeed detaches the named tag. Unknown tags are ignored.
func (r *ReaderService) UntagFeed(ctx context.Context, feedID int64, name string) error {
	tag, err := r.tags.GetByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.feeds.RemoveTagging(ctx, feedID, tag.ID); err != nil {
		return fmt.Errorf("untag feed: %w", err)
	}
	return nil
}

func (r *ReaderService) ensureTag(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty tag name", ErrInvalidInput)
	}

	tag, err := r.tags.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	tag, err = r.tags.Create(ctx, name)
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent create.
		return r.tags.GetByName(ctx, name)
	}
	return tag, err
}
