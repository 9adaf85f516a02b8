package service

import (
	"context"
	"fmt"

	"feedsync/internal/domain"
)

// Aggregator reports unread counts per feed, per tag and in total.
type Aggregator struct {
	feeds FeedStore
	items ItemStore
	tags  TagStore
}

func NewAggregator(feeds FeedStore, items ItemStore, tags TagStore) *Aggregator {
	return &Aggregator{feeds: feeds, items: items, tags: tags}
}

// UnreadCountsByFeed includes every subscribed feed, with 0 for feeds that
// have nothing unread.
func (a *Aggregator) UnreadCountsByFeed(ctx context.Context) (map[int64]int64, error) {
	feeds, err := a.feeds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	counts, err := a.items.CountUnreadByFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	result := make(map[int64]int64, len(feeds))
	for _, f := range feeds {
		result[f.ID] = counts[f.ID]
	}
	return result, nil
}

// UnreadCountsByTag sums the unread counts of the feeds carrying each tag.
// A feed with several tags contributes to each of them.
func (a *Aggregator) UnreadCountsByTag(ctx context.Context) (map[int64]int64, error) {
	perFeed, err := a.items.CountUnreadByFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return a.byTag(ctx, perFeed)
}

// TotalUnread counts each unread item once, regardless of tags.
func (a *Aggregator) TotalUnread(ctx context.Context) (int64, error) {
	perFeed, err := a.items.CountUnreadByFeed(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return sum(perFeed), nil
}

// GetUnreadCounts computes all three views from a single count query.
func (a *Aggregator) GetUnreadCounts(ctx context.Context) (*domain.UnreadCounts, error) {
	perFeed, err := a.UnreadCountsByFeed(ctx)
	if err != nil {
		return nil, err
	}

	perTag, err := a.byTag(ctx, perFeed)
	if err != nil {
		return nil, err
	}

	return &domain.UnreadCounts{
		PerFeed: perFeed,
		PerTag:  perTag,
		Total:   sum(perFeed),
	}, nil
}

func (a *Aggregator) byTag(ctx context.Context, perFeed map[int64]int64) (map[int64]int64, error) {
	tags, err := a.tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	taggings, err := a.tags.ListTaggings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list taggings: %w", err)
	}

	result := make(map[int64]int64, len(tags))
	for _, t := range tags {
		result[t.ID] = 0
	}
	for _, tg := range taggings {
		result[tg.TagID] += perFeed[tg.FeedID]
	}
	return result, nil
}

func sum(counts map[int64]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}
