package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"feedsync/internal/api"
	"feedsync/internal/auth"
	"feedsync/internal/config"
	"feedsync/internal/fetcher"
	"feedsync/internal/logging"
	"feedsync/internal/parser"
	"feedsync/internal/publisher"
	"feedsync/internal/scheduler"
	"feedsync/internal/service"
	"feedsync/internal/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "refresh every feed once and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		slog.Error("feedsync exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := cfg.Database.DSN()
	if cfg.Database.Driver == sqlstore.DriverSQLite {
		dsn = sqlstore.SQLiteDSN(cfg.Database.Path)
	}
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:          cfg.Database.Driver,
		DSN:             dsn,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	// A nil interface, not a nil *RabbitMQ, when publishing is disabled.
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	feedStore := sqlstore.NewFeedStore(db)
	itemStore := sqlstore.NewItemStore(db)
	tagStore := sqlstore.NewTagStore(db)
	txManager := sqlstore.NewTransactionManager(db)

	syncService := service.NewSyncService(
		fetcher.New(fetcher.Config{
			Timeout:      cfg.Fetch.Timeout,
			UserAgent:    cfg.Fetch.UserAgent,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		}, logger),
		parser.New(),
		feedStore,
		itemStore,
		txManager,
		pub,
		logger,
		cfg.Sync,
	)

	sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.RunTimeout, logger)

	if once {
		sched.RunOnce(ctx)
		return nil
	}

	var authenticator auth.Authenticator = auth.NoAuth{}
	if cfg.Auth.Mode == "jwt" {
		authenticator = auth.NewJWTAuth(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewServer(
			syncService,
			service.NewReaderService(feedStore, itemStore, tagStore, logger),
			service.NewAggregator(feedStore, itemStore, tagStore),
			authenticator,
			api.Config{
				CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
				RefreshTimeout:     cfg.Sync.RunTimeout,
			},
			logger,
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	logger.Info("starting feedsync",
		"addr", cfg.HTTP.Addr,
		"interval", cfg.Sync.Interval,
		"concurrency", cfg.Sync.RefreshConcurrency,
		"auth", cfg.Auth.Mode,
		"publish", cfg.RabbitMQ.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
