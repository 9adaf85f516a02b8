package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedsync/internal/domain"
)

type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

type Parser interface {
	Parse(raw []byte) (*domain.NormalizedFeed, error)
}

type FeedStore interface {
	Create(ctx context.Context, feed *domain.Feed) error
	GetByID(ctx context.Context, id int64) (*domain.Feed, error)
	GetByURI(ctx context.Context, uri string) (*domain.Feed, error)
	List(ctx context.Context) ([]domain.Feed, error)
	Save(ctx context.Context, feed *domain.Feed) error
	Delete(ctx context.Context, id int64) error
	ListTags(ctx context.Context, feedID int64) ([]domain.Tag, error)
	AddTagging(ctx context.Context, feedID, tagID int64) error
	RemoveTagging(ctx context.Context, feedID, tagID int64) error
	DeleteTaggings(ctx context.Context, feedID int64) error
}

type ItemStore interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	ListByFeed(ctx context.Context, feedID int64) ([]domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	SetReadState(ctx context.Context, id int64, read, star bool) error
	MarkAllRead(ctx context.Context, filter domain.ItemFilter) (int64, error)
	CountUnread(ctx context.Context, feedID int64) (int64, error)
	CountUnreadByFeed(ctx context.Context) (map[int64]int64, error)
	DeleteByFeed(ctx context.Context, feedID int64) error
}

type TagStore interface {
	Create(ctx context.Context, name string) (*domain.Tag, error)
	GetByID(ctx context.Context, id int64) (*domain.Tag, error)
	GetByName(ctx context.Context, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]domain.Tag, error)
	Delete(ctx context.Context, id int64) error
	ListTaggings(ctx context.Context) ([]domain.Tagging, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, item *domain.Item) error
	Close() error
}
