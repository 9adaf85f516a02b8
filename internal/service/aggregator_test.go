package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedsync/internal/domain"
	"feedsync/internal/service/mocks"
)

type AggregatorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	feeds *mocks.MockFeedStore
	items *mocks.MockItemStore
	tags  *mocks.MockTagStore

	aggregator *Aggregator
}

func (s *AggregatorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.feeds = mocks.NewMockFeedStore(s.ctrl)
	s.items = mocks.NewMockItemStore(s.ctrl)
	s.tags = mocks.NewMockTagStore(s.ctrl)
	s.aggregator = NewAggregator(s.feeds, s.items, s.tags)
}

func (s *AggregatorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAggregatorTestSuite(t *testing.T) {
	suite.Run(t, new(AggregatorTestSuite))
}

func (s *AggregatorTestSuite) TestUnreadCountsByFeed_ZeroForQuietFeeds() {
	ctx := context.Background()

	s.feeds.EXPECT().List(ctx).Return([]domain.Feed{{ID: 1}, {ID: 2}}, nil)
	s.items.EXPECT().CountUnreadByFeed(ctx).Return(map[int64]int64{1: 3}, nil)

	counts, err := s.aggregator.UnreadCountsByFeed(ctx)

	s.NoError(err)
	s.Equal(map[int64]int64{1: 3, 2: 0}, counts)
}

func (s *AggregatorTestSuite) TestUnreadCountsByTag_SumsTaggedFeeds() {
	ctx := context.Background()

	s.items.EXPECT().CountUnreadByFeed(ctx).Return(map[int64]int64{1: 3, 2: 4, 3: 10}, nil)
	s.tags.EXPECT().List(ctx).Return([]domain.Tag{{ID: 10, Name: "news"}, {ID: 11, Name: "tech"}, {ID: 12, Name: "empty"}}, nil)
	s.tags.EXPECT().ListTaggings(ctx).Return([]domain.Tagging{
		{FeedID: 1, TagID: 10},
		{FeedID: 2, TagID: 10},
		{FeedID: 2, TagID: 11},
	}, nil)

	counts, err := s.aggregator.UnreadCountsByTag(ctx)

	s.NoError(err)
	s.Equal(int64(7), counts[10])
	s.Equal(int64(4), counts[11])
	s.Equal(int64(0), counts[12])
}

func (s *AggregatorTestSuite) TestTotalUnread_NotDoubleCounted() {
	ctx := context.Background()

	s.items.EXPECT().CountUnreadByFeed(ctx).Return(map[int64]int64{1: 3, 2: 4}, nil)

	total, err := s.aggregator.TotalUnread(ctx)

	s.NoError(err)
	s.Equal(int64(7), total)
}

func (s *AggregatorTestSuite) TestGetUnreadCounts() {
	ctx := context.Background()

	s.feeds.EXPECT().List(ctx).Return([]domain.Feed{{ID: 1}, {ID: 2}}, nil)
	s.items.EXPECT().CountUnreadByFeed(ctx).Return(map[int64]int64{1: 3, 2: 4}, nil)
	s.tags.EXPECT().List(ctx).Return([]domain.Tag{{ID: 10, Name: "news"}, {ID: 11, Name: "all"}}, nil)
	s.tags.EXPECT().ListTaggings(ctx).Return([]domain.Tagging{
		{FeedID: 1, TagID: 10},
		{FeedID: 1, TagID: 11},
		{FeedID: 2, TagID: 11},
	}, nil)

	counts, err := s.aggregator.GetUnreadCounts(ctx)

	s.NoError(err)
	s.Equal(map[int64]int64{1: 3, 2: 4}, counts.PerFeed)
	s.Equal(map[int64]int64{10: 3, 11: 7}, counts.PerTag)
	s.Equal(int64(7), counts.Total)
}

func (s *AggregatorTestSuite) TestGetUnreadCounts_StoreError() {
	ctx := context.Background()

	s.feeds.EXPECT().List(ctx).Return([]domain.Feed{{ID: 1}}, nil)
	s.items.EXPECT().CountUnreadByFeed(ctx).Return(nil, errors.New("db down"))

	counts, err := s.aggregator.GetUnreadCounts(ctx)

	s.Nil(counts)
	s.Error(err)
}
