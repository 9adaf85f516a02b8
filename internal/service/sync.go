package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"feedsync/internal/config"
	"feedsync/internal/dedup"
	"feedsync/internal/domain"
)

// ErrInvalidURI is returned by AddFeed for URIs that are not absolute
// http(s) URLs.
var ErrInvalidURI = errors.New("invalid feed uri")

type SyncService struct {
	fetcher   Fetcher
	parser    Parser
	feeds     FeedStore
	items     ItemStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
	now       func() time.Time
}

// NewSyncService wires the ingestion pipeline. publisher may be nil.
func NewSyncService(
	fetcher Fetcher,
	parser Parser,
	feeds FeedStore,
	items ItemStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		fetcher:   fetcher,
		parser:    parser,
		feeds:     feeds,
		items:     items,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		config:    cfg,
		now:       time.Now,
	}
}

// AddFeed subscribes to uri and imports its current entries.
func (s *SyncService) AddFeed(ctx context.Context, uri string) (*domain.Feed, error) {
	uri = strings.TrimSpace(uri)
	if err := validateFeedURI(uri); err != nil {
		return nil, err
	}
	return s.SynchronizeNewFeed(ctx, uri)
}

func (s *SyncService) RefreshFeed(ctx context.Context, feedID int64) (*domain.SyncStats, error) {
	return s.SynchronizeExistingFeed(ctx, feedID)
}

// SynchronizeNewFeed fetches and parses uri, creates the feed and stores its
// entries. Nothing is written when the fetch or the parse fails. A feed that
// is already subscribed yields domain.ErrConflict.
func (s *SyncService) SynchronizeNewFeed(ctx context.Context, uri string) (*domain.Feed, error) {
	startTime := s.now()
	logger := s.logger.With("feed_uri", uri)

	_, err := s.feeds.GetByURI(ctx, uri)
	if err == nil {
		return nil, fmt.Errorf("subscribe %s: %w", uri, domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup feed: %w", err)
	}

	parsed, err := s.fetchAndParse(ctx, uri)
	if err != nil {
		return nil, err
	}

	feed := &domain.Feed{
		FeedURI:   uri,
		UpdatedAt: startTime,
	}
	if parsed.Title != nil {
		feed.Title = *parsed.Title
	}
	if len(parsed.SiteLinks) > 0 {
		site := parsed.SiteLinks[0]
		feed.SiteURI = &site
	}

	if err := s.feeds.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("create feed: %w", err)
	}

	stats := s.storeEntries(ctx, feed.ID, parsed.Entries, startTime)
	stats.Duration = s.now().Sub(startTime)

	logger.Info("feed subscribed",
		"feed_id", feed.ID,
		"title", feed.Title,
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return feed, nil
}

// SynchronizeExistingFeed imports new entries of a subscribed feed and moves
// its watermark. A fetch or parse failure leaves the feed untouched.
func (s *SyncService) SynchronizeExistingFeed(ctx context.Context, feedID int64) (*domain.SyncStats, error) {
	startTime := s.now()
	logger := s.logger.With("feed_id", feedID)

	feed, err := s.feeds.GetByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	logger.Debug("starting feed sync", "feed_uri", feed.FeedURI)

	parsed, err := s.fetchAndParse(ctx, feed.FeedURI)
	if err != nil {
		return nil, err
	}

	stats := s.storeEntries(ctx, feed.ID, parsed.Entries, startTime)

	feed.UpdatedAt = s.now()
	if err := s.feeds.Save(ctx, feed); err != nil {
		return stats, fmt.Errorf("save feed: %w", err)
	}

	stats.Duration = s.now().Sub(startTime)

	logger.Info("feed synced",
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

// Sync refreshes every subscribed feed. Feeds are refreshed concurrently up to
// the configured limit and one failing feed does not stop the others.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := s.now()

	feeds, err := s.feeds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	s.logger.Info("starting sync", "feeds", len(feeds), "concurrency", s.config.RefreshConcurrency)

	results := make([]*domain.SyncStats, len(feeds))
	failed := make([]bool, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	if s.config.RefreshConcurrency > 0 {
		g.SetLimit(s.config.RefreshConcurrency)
	}

	for i := range feeds {
		i := i
		g.Go(func() error {
			stats, err := s.SynchronizeExistingFeed(gctx, feeds[i].ID)
			if err != nil {
				failed[i] = true
				s.logger.Warn("feed sync failed",
					"feed_id", feeds[i].ID,
					"feed_uri", feeds[i].FeedURI,
					"error", err,
				)
			}
			results[i] = stats
			return nil
		})
	}
	_ = g.Wait()

	total := &domain.SyncStats{Feeds: len(feeds)}
	for i := range feeds {
		total.Add(results[i])
		if failed[i] {
			total.Failed++
		}
	}
	total.Duration = s.now().Sub(startTime)

	s.logger.Info("sync completed",
		"feeds", total.Feeds,
		"failed", total.Failed,
		"new", total.New,
		"skipped", total.Skipped,
		"errors", total.Errors,
		"published", total.Published,
		"duration", total.Duration,
	)

	if err := ctx.Err(); err != nil {
		return total, err
	}
	return total, nil
}

// DeleteFeed unsubscribes from a feed, removing its taggings and items in the
// same transaction.
func (s *SyncService) DeleteFeed(ctx context.Context, feedID int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.feeds.DeleteTaggings(txCtx, feedID); err != nil {
			return fmt.Errorf("delete taggings: %w", err)
		}
		if err := s.items.DeleteByFeed(txCtx, feedID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		if err := s.feeds.Delete(txCtx, feedID); err != nil {
			return fmt.Errorf("delete feed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("feed deleted", "feed_id", feedID)
	return nil
}

func (s *SyncService) fetchAndParse(ctx context.Context, uri string) (*domain.NormalizedFeed, error) {
	raw, err := s.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// storeEntries creates one item per entry. Entries already stored count as
// skipped; other failures are counted and logged, never returned.
func (s *SyncService) storeEntries(ctx context.Context, feedID int64, entries []domain.NormalizedEntry, fetchedAt time.Time) *domain.SyncStats {
	stats := &domain.SyncStats{FeedID: feedID, Fetched: len(entries)}

	for i := range entries {
		item := itemFromEntry(feedID, &entries[i], fetchedAt)

		if err := s.items.Create(ctx, item); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				stats.Skipped++
				s.logger.Debug("item already stored", "feed_id", feedID, "hash", item.Hash)
				continue
			}
			stats.Errors++
			s.logger.Warn("failed to store item", "feed_id", feedID, "title", item.Title, "error", err)
			continue
		}
		stats.New++

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, item); err != nil {
				stats.Errors++
				s.logger.Warn("failed to publish item", "item_id", item.ID, "error", err)
			} else {
				stats.Published++
			}
		}
	}

	return stats
}

func itemFromEntry(feedID int64, entry *domain.NormalizedEntry, fetchedAt time.Time) *domain.Item {
	item := &domain.Item{
		FeedID: feedID,
		Author: strings.Join(entry.Authors, ", "),
	}
	if entry.Title != nil {
		item.Title = *entry.Title
	}
	if entry.Content != nil {
		item.Content = *entry.Content
	}
	if len(entry.Links) > 0 {
		link := entry.Links[0]
		item.Link = &link
	}

	item.CreatedAt = fetchedAt
	if entry.PublishedAt != nil {
		item.CreatedAt = *entry.PublishedAt
	}
	item.UpdatedAt = item.CreatedAt
	if entry.UpdatedAt != nil {
		item.UpdatedAt = *entry.UpdatedAt
	}

	item.Hash = dedup.Fingerprint(item.Title, item.Content)
	return item
}

func validateFeedURI(uri string) error {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURI)
	}
	return nil
}
