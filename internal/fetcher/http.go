// Package fetcher retrieves raw feed documents over HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"feedsync/internal/domain"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "feedsync/1.0"
	DefaultMaxBodyBytes = 10 << 20
)

var errBodyTooLarge = errors.New("response body too large")

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// HTTPFetcher performs a single GET per call. It never retries.
type HTTPFetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger.With("component", "fetcher"),
	}
}

// Fetch returns the body of uri. Failures are reported as *domain.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &domain.FetchError{URI: uri, Kind: domain.FetchNetwork, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URI: uri, Kind: domain.FetchNetwork, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, &domain.FetchError{URI: uri, Kind: domain.FetchHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		kind := domain.FetchDecode
		if isNetworkError(ctx, err) {
			kind = domain.FetchNetwork
		}
		return nil, &domain.FetchError{URI: uri, Kind: kind, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &domain.FetchError{URI: uri, Kind: domain.FetchDecode, Err: errBodyTooLarge}
	}

	f.logger.Debug("fetched feed document",
		"uri", uri,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return body, nil
}

// isNetworkError reports whether a body read failed because the request was
// cancelled or timed out rather than because the payload was malformed.
func isNetworkError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
