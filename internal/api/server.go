// Package api exposes feeds, items and tags over a Google Reader compatible
// HTTP interface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"feedsync/internal/auth"
	"feedsync/internal/domain"
)

type Subscriptions interface {
	AddFeed(ctx context.Context, uri string) (*domain.Feed, error)
	RefreshFeed(ctx context.Context, feedID int64) (*domain.SyncStats, error)
	Sync(ctx context.Context) (*domain.SyncStats, error)
	DeleteFeed(ctx context.Context, feedID int64) error
}

type Reader interface {
	ListFeeds(ctx context.Context) ([]domain.FeedWithTags, error)
	GetFeed(ctx context.Context, id int64) (*domain.Feed, error)
	RenameFeed(ctx context.Context, id int64, title string) error
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	SetReadState(ctx context.Context, id int64, read, star *bool) error
	MarkAllRead(ctx context.Context, filter domain.ItemFilter) (int64, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	GetTagByName(ctx context.Context, name string) (*domain.Tag, error)
	DeleteTag(ctx context.Context, id int64) error
	TagFeed(ctx context.Context, feedID int64, name string) (*domain.Tag, error)
	UntagFeed(ctx context.Context, feedID int64, name string) error
}

type UnreadCounter interface {
	GetUnreadCounts(ctx context.Context) (*domain.UnreadCounts, error)
}

type Config struct {
	CORSAllowedOrigins []string
	// RefreshTimeout bounds a refresh request and extends its write deadline
	// past the server-wide one. Zero keeps the server's deadline.
	RefreshTimeout time.Duration
}

type Server struct {
	subs   Subscriptions
	reader Reader
	counts UnreadCounter
	auth   auth.Authenticator
	logger *slog.Logger
	router chi.Router

	refreshTimeout time.Duration
}

func NewServer(
	subs Subscriptions,
	reader Reader,
	counts UnreadCounter,
	authenticator auth.Authenticator,
	cfg Config,
	logger *slog.Logger,
) *Server {
	s := &Server{
		subs:   subs,
		reader: reader,
		counts: counts,
		auth:   authenticator,
		logger: logger.With("component", "api"),

		refreshTimeout: cfg.RefreshTimeout,
	}
	s.setupRoutes(cfg)
	return s
}

func (s *Server) setupRoutes(cfg Config) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	})

	r.Post("/accounts/ClientLogin", s.handleClientLogin)

	r.Route("/reader/api/0", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/token", s.handleToken)
		r.Get("/tag/list", s.handleTagList)
		r.Post("/disable-tag", s.handleDisableTag)
		r.Get("/subscription/list", s.handleSubscriptionList)
		r.Post("/subscription/quickadd", s.handleQuickAdd)
		r.Post("/subscription/edit", s.handleSubscriptionEdit)
		r.Post("/subscription/refresh", s.handleRefresh)
		r.Get("/unread-count", s.handleUnreadCount)
		r.Get("/unread_count", s.handleUnreadCount)
		r.Get("/stream/items/contents", s.handleStreamContents)
		r.Post("/edit-tag", s.handleEditTag)
		r.Post("/mark-all-as-read", s.handleMarkAllAsRead)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
