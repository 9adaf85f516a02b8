package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"feedsync/internal/dedup"
	"feedsync/internal/domain"
)

// storeSuite holds the store tests shared by every driver. Driver suites embed
// it and provide db.
type storeSuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB
}

func (s *storeSuite) SetupTest() {
	for _, table := range []string{"taggings", "items", "tags", "feeds"} {
		_, err := s.db.ExecContext(s.ctx, "DELETE FROM "+table)
		s.Require().NoError(err)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func (s *storeSuite) createFeed(uri string) *domain.Feed {
	feed := &domain.Feed{
		Title:   "Feed " + uri,
		FeedURI: uri,
		SiteURI: ptr("https://example.com/"),
	}
	s.Require().NoError(NewFeedStore(s.db).Create(s.ctx, feed))
	return feed
}

func (s *storeSuite) createItem(feedID int64, title string, updated time.Time, read bool) *domain.Item {
	item := &domain.Item{
		FeedID:    feedID,
		Title:     title,
		Content:   "content of " + title,
		CreatedAt: updated,
		UpdatedAt: updated,
		Read:      read,
	}
	s.Require().NoError(NewItemStore(s.db).Create(s.ctx, item))
	return item
}

func (s *storeSuite) TestFeedStore_CreateAndGet() {
	store := NewFeedStore(s.db)
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	feed := &domain.Feed{
		Title:     "Example",
		FeedURI:   "https://example.com/feed.xml",
		SiteURI:   ptr("https://example.com/"),
		UpdatedAt: updated,
	}
	s.Require().NoError(store.Create(s.ctx, feed))
	s.Greater(feed.ID, int64(0))

	byID, err := store.GetByID(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal("Example", byID.Title)
	s.Equal("https://example.com/feed.xml", byID.FeedURI)
	s.Require().NotNil(byID.SiteURI)
	s.Equal("https://example.com/", *byID.SiteURI)
	s.True(updated.Equal(byID.UpdatedAt))

	byURI, err := store.GetByURI(s.ctx, feed.FeedURI)
	s.Require().NoError(err)
	s.Equal(feed.ID, byURI.ID)
}

func (s *storeSuite) TestFeedStore_CreateWithoutSiteURI() {
	store := NewFeedStore(s.db)

	feed := &domain.Feed{Title: "No site", FeedURI: "https://example.com/nosite.xml"}
	s.Require().NoError(store.Create(s.ctx, feed))
	s.False(feed.UpdatedAt.IsZero())

	got, err := store.GetByID(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Nil(got.SiteURI)
}

func (s *storeSuite) TestFeedStore_CreateDuplicateURI() {
	store := NewFeedStore(s.db)
	s.createFeed("https://example.com/dup.xml")

	err := store.Create(s.ctx, &domain.Feed{Title: "Again", FeedURI: "https://example.com/dup.xml"})
	s.ErrorIs(err, domain.ErrConflict)

	feeds, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(feeds, 1)
}

func (s *storeSuite) TestFeedStore_GetMissing() {
	store := NewFeedStore(s.db)

	_, err := store.GetByID(s.ctx, 424242)
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = store.GetByURI(s.ctx, "https://nowhere.example.com/feed")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestFeedStore_SaveOnlyTouchesTarget() {
	store := NewFeedStore(s.db)
	first := s.createFeed("https://one.example.com/feed")
	second := s.createFeed("https://two.example.com/feed")

	watermark := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	first.Title = "Renamed"
	first.UpdatedAt = watermark
	s.Require().NoError(store.Save(s.ctx, first))

	got, err := store.GetByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", got.Title)
	s.True(watermark.Equal(got.UpdatedAt))

	other, err := store.GetByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(second.Title, other.Title)
}

func (s *storeSuite) TestFeedStore_SaveMissing() {
	err := NewFeedStore(s.db).Save(s.ctx, &domain.Feed{ID: 999, Title: "ghost", FeedURI: "x", UpdatedAt: time.Now()})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestFeedStore_DeleteCascades() {
	feeds := NewFeedStore(s.db)
	items := NewItemStore(s.db)
	tags := NewTagStore(s.db)

	feed := s.createFeed("https://example.com/gone.xml")
	s.createItem(feed.ID, "a", time.Now(), false)
	tag, err := tags.Create(s.ctx, "news")
	s.Require().NoError(err)
	s.Require().NoError(feeds.AddTagging(s.ctx, feed.ID, tag.ID))

	s.Require().NoError(feeds.Delete(s.ctx, feed.ID))

	list, err := items.ListByFeed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Empty(list)

	taggings, err := tags.ListTaggings(s.ctx)
	s.Require().NoError(err)
	s.Empty(taggings)

	s.ErrorIs(feeds.Delete(s.ctx, feed.ID), domain.ErrNotFound)
}

func (s *storeSuite) TestFeedStore_Taggings() {
	feeds := NewFeedStore(s.db)
	tags := NewTagStore(s.db)

	feed := s.createFeed("https://example.com/tagged.xml")
	tech, err := tags.Create(s.ctx, "tech")
	s.Require().NoError(err)
	art, err := tags.Create(s.ctx, "art")
	s.Require().NoError(err)

	s.Require().NoError(feeds.AddTagging(s.ctx, feed.ID, tech.ID))
	s.Require().NoError(feeds.AddTagging(s.ctx, feed.ID, art.ID))
	s.Require().NoError(feeds.AddTagging(s.ctx, feed.ID, tech.ID))

	attached, err := feeds.ListTags(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Require().Len(attached, 2)
	s.Equal("art", attached[0].Name)
	s.Equal("tech", attached[1].Name)

	s.Require().NoError(feeds.RemoveTagging(s.ctx, feed.ID, art.ID))
	attached, err = feeds.ListTags(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Len(attached, 1)

	s.Require().NoError(feeds.DeleteTaggings(s.ctx, feed.ID))
	attached, err = feeds.ListTags(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Empty(attached)
}

func (s *storeSuite) TestItemStore_CreateComputesHash() {
	store := NewItemStore(s.db)
	feed := s.createFeed("https://example.com/items.xml")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	item := &domain.Item{
		FeedID:    feed.ID,
		Link:      ptr("https://example.com/post"),
		Title:     "Hello",
		Author:    "Alice",
		Content:   "World",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(store.Create(s.ctx, item))
	s.Greater(item.ID, int64(0))
	s.Equal(dedup.Fingerprint("Hello", "World"), item.Hash)

	got, err := store.GetByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.Hash, got.Hash)
	s.Equal("Alice", got.Author)
	s.Require().NotNil(got.Link)
	s.Equal("https://example.com/post", *got.Link)
	s.True(now.Equal(got.CreatedAt))
	s.False(got.Read)
	s.False(got.Star)
}

func (s *storeSuite) TestItemStore_DuplicateHashConflicts() {
	store := NewItemStore(s.db)
	feed := s.createFeed("https://example.com/dups.xml")
	now := time.Now().UTC().Truncate(time.Second)

	first := &domain.Item{FeedID: feed.ID, Title: "Same", Content: "Body", CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(store.Create(s.ctx, first))
	s.Require().NoError(store.SetReadState(s.ctx, first.ID, true, true))

	second := &domain.Item{FeedID: feed.ID, Title: "Same", Content: "Body", CreatedAt: now, UpdatedAt: now}
	s.ErrorIs(store.Create(s.ctx, second), domain.ErrConflict)

	list, err := store.ListByFeed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(list[0].Read)
	s.True(list[0].Star)
}

func (s *storeSuite) TestItemStore_SameHashDifferentFeeds() {
	store := NewItemStore(s.db)
	a := s.createFeed("https://a.example.com/feed")
	b := s.createFeed("https://b.example.com/feed")
	now := time.Now()

	s.Require().NoError(store.Create(s.ctx, &domain.Item{FeedID: a.ID, Title: "T", Content: "C", CreatedAt: now, UpdatedAt: now}))
	s.Require().NoError(store.Create(s.ctx, &domain.Item{FeedID: b.ID, Title: "T", Content: "C", CreatedAt: now, UpdatedAt: now}))
}

func (s *storeSuite) TestItemStore_ListOrderAndFilters() {
	store := NewItemStore(s.db)
	feeds := NewFeedStore(s.db)
	tags := NewTagStore(s.db)

	a := s.createFeed("https://a.example.com/feed")
	b := s.createFeed("https://b.example.com/feed")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	oldest := s.createItem(a.ID, "oldest", base, false)
	middle := s.createItem(a.ID, "middle", base.Add(time.Hour), true)
	newest := s.createItem(b.ID, "newest", base.Add(2*time.Hour), false)

	all, err := store.List(s.ctx, domain.ItemFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]int64{newest.ID, middle.ID, oldest.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	byFeed, err := store.ListByFeed(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(byFeed, 2)

	unread, err := store.List(s.ctx, domain.ItemFilter{UnreadOnly: true})
	s.Require().NoError(err)
	s.Len(unread, 2)

	older, err := store.List(s.ctx, domain.ItemFilter{OlderThan: base.Add(time.Hour)})
	s.Require().NoError(err)
	s.Len(older, 2)

	newer, err := store.List(s.ctx, domain.ItemFilter{NewerThan: base.Add(time.Hour)})
	s.Require().NoError(err)
	s.Require().Len(newer, 1)
	s.Equal(newest.ID, newer[0].ID)

	page, err := store.List(s.ctx, domain.ItemFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(middle.ID, page[0].ID)

	tag, err := tags.Create(s.ctx, "b-only")
	s.Require().NoError(err)
	s.Require().NoError(feeds.AddTagging(s.ctx, b.ID, tag.ID))

	tagged, err := store.List(s.ctx, domain.ItemFilter{TagID: tag.ID})
	s.Require().NoError(err)
	s.Require().Len(tagged, 1)
	s.Equal(newest.ID, tagged[0].ID)
}

func (s *storeSuite) TestItemStore_SetReadState() {
	store := NewItemStore(s.db)
	feed := s.createFeed("https://example.com/state.xml")
	item := s.createItem(feed.ID, "x", time.Now(), false)

	s.Require().NoError(store.SetReadState(s.ctx, item.ID, true, false))
	got, err := store.GetByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.True(got.Read)
	s.False(got.Star)

	starred, err := store.List(s.ctx, domain.ItemFilter{StarredOnly: true})
	s.Require().NoError(err)
	s.Empty(starred)

	s.ErrorIs(store.SetReadState(s.ctx, 987654, true, true), domain.ErrNotFound)
}

func (s *storeSuite) TestItemStore_MarkAllRead() {
	store := NewItemStore(s.db)
	a := s.createFeed("https://a.example.com/feed")
	b := s.createFeed("https://b.example.com/feed")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.createItem(a.ID, "a1", base, false)
	s.createItem(a.ID, "a2", base.Add(2*time.Hour), false)
	s.createItem(b.ID, "b1", base, false)

	n, err := store.MarkAllRead(s.ctx, domain.ItemFilter{FeedID: a.ID, OlderThan: base.Add(time.Hour)})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	count, err := store.CountUnread(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	n, err = store.MarkAllRead(s.ctx, domain.ItemFilter{})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	byFeed, err := store.CountUnreadByFeed(s.ctx)
	s.Require().NoError(err)
	s.Empty(byFeed)
}

func (s *storeSuite) TestItemStore_CountUnread() {
	store := NewItemStore(s.db)
	a := s.createFeed("https://a.example.com/feed")
	b := s.createFeed("https://b.example.com/feed")
	empty := s.createFeed("https://c.example.com/feed")
	now := time.Now()

	for i, read := range []bool{false, true, false, true, false} {
		s.createItem(a.ID, string(rune('a'+i)), now, read)
	}
	s.createItem(b.ID, "b", now, false)

	count, err := store.CountUnread(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	count, err = store.CountUnread(s.ctx, empty.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), count)

	byFeed, err := store.CountUnreadByFeed(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[int64]int64{a.ID: 3, b.ID: 1}, byFeed)
}

func (s *storeSuite) TestItemStore_DeleteByFeed() {
	store := NewItemStore(s.db)
	a := s.createFeed("https://a.example.com/feed")
	b := s.createFeed("https://b.example.com/feed")
	s.createItem(a.ID, "a", time.Now(), false)
	s.createItem(b.ID, "b", time.Now(), false)

	s.Require().NoError(store.DeleteByFeed(s.ctx, a.ID))

	all, err := store.List(s.ctx, domain.ItemFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(b.ID, all[0].FeedID)
}

func (s *storeSuite) TestTagStore_CreateListDelete() {
	store := NewTagStore(s.db)
	feeds := NewFeedStore(s.db)
	feed := s.createFeed("https://example.com/feed")

	zeta, err := store.Create(s.ctx, "zeta")
	s.Require().NoError(err)
	alpha, err := store.Create(s.ctx, " alpha ")
	s.Require().NoError(err)
	s.Equal("alpha", alpha.Name)

	_, err = store.Create(s.ctx, "zeta")
	s.ErrorIs(err, domain.ErrConflict)

	_, err = store.Create(s.ctx, "   ")
	s.Error(err)

	list, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("alpha", list[0].Name)

	byName, err := store.GetByName(s.ctx, "zeta")
	s.Require().NoError(err)
	s.Equal(zeta.ID, byName.ID)

	s.Require().NoError(feeds.AddTagging(s.ctx, feed.ID, zeta.ID))
	s.Require().NoError(store.Delete(s.ctx, zeta.ID))

	_, err = store.GetByID(s.ctx, zeta.ID)
	s.ErrorIs(err, domain.ErrNotFound)

	attached, err := feeds.ListTags(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Empty(attached)

	s.ErrorIs(store.Delete(s.ctx, zeta.ID), domain.ErrNotFound)
}

func (s *storeSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	feeds := NewFeedStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return feeds.Create(ctx, &domain.Feed{Title: "tx", FeedURI: "https://example.com/tx.xml"})
	})
	s.Require().NoError(err)

	_, err = feeds.GetByURI(s.ctx, "https://example.com/tx.xml")
	s.NoError(err)
}

func (s *storeSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	feeds := NewFeedStore(s.db)
	s.createFeed("https://example.com/pre-existing.xml")

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := feeds.Create(ctx, &domain.Feed{Title: "rollback", FeedURI: "https://example.com/rollback.xml"}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	_, err = feeds.GetByURI(s.ctx, "https://example.com/rollback.xml")
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = feeds.GetByURI(s.ctx, "https://example.com/pre-existing.xml")
	s.NoError(err)
}

func (s *storeSuite) TestTransaction_PanicRollsBack() {
	tm := NewTransactionManager(s.db)
	feeds := NewFeedStore(s.db)

	s.PanicsWithValue("boom", func() {
		_ = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
			s.Require().NoError(feeds.Create(ctx, &domain.Feed{Title: "panic", FeedURI: "https://example.com/panic.xml"}))
			panic("boom")
		})
	})

	_, err := feeds.GetByURI(s.ctx, "https://example.com/panic.xml")
	s.ErrorIs(err, domain.ErrNotFound)

	// The pool is usable again after the rollback.
	s.createFeed("https://example.com/after-panic.xml")
}

func (s *storeSuite) TestTransaction_NestedJoinsOuter() {
	tm := NewTransactionManager(s.db)
	feeds := NewFeedStore(s.db)

	err := tm.WithTransaction(s.ctx, func(outer context.Context) error {
		if err := feeds.Create(outer, &domain.Feed{Title: "outer", FeedURI: "https://example.com/outer.xml"}); err != nil {
			return err
		}
		return tm.WithTransaction(outer, func(inner context.Context) error {
			s.Same(GetTxFromContext(outer), GetTxFromContext(inner))
			if err := feeds.Create(inner, &domain.Feed{Title: "inner", FeedURI: "https://example.com/inner.xml"}); err != nil {
				return err
			}
			return context.Canceled
		})
	})
	s.ErrorIs(err, context.Canceled)

	for _, uri := range []string{"https://example.com/outer.xml", "https://example.com/inner.xml"} {
		_, err := feeds.GetByURI(s.ctx, uri)
		s.ErrorIs(err, domain.ErrNotFound, uri)
	}
}

func (s *storeSuite) TestGetExecutor_OutsideTransactionUsesPool() {
	s.Nil(GetTxFromContext(s.ctx))
	s.Same(s.db, GetExecutor(s.ctx, s.db))
}

func (s *storeSuite) TestMigrate_Idempotent() {
	s.Require().NoError(Migrate(s.ctx, s.db))

	var applied int
	s.Require().NoError(s.db.GetContext(s.ctx, &applied, "SELECT COUNT(*) FROM schema_migrations"))
	s.Equal(2, applied)
}
