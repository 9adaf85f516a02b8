package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const tokenKey ctxKey = "token"

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}

// requireAuth accepts "GoogleLogin auth=<token>" and "Bearer <token>".
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := tokenFromHeader(r.Header.Get("Authorization"))
		if !ok {
			writeText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := s.auth.Verify(r.Context(), token); err != nil {
			s.logger.Debug("token rejected", "error", err)
			writeText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey, token)))
	})
}

func tokenFromHeader(header string) (string, bool) {
	for _, prefix := range []string{"GoogleLogin auth=", "Bearer "} {
		if token, ok := strings.CutPrefix(header, prefix); ok {
			token = strings.TrimSpace(token)
			return token, token != ""
		}
	}
	return "", false
}
