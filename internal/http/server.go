// Package http is the JSON API surface: one handler file per entity, all
// routed through a middleware that adds request IDs, security headers,
// per-request logging and rate limiting on mutating methods.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/services"
	"tally/internal/store"
)

type Server struct {
	http.Server
	store       store.Store
	imports     *services.ImportService
	byCatCache  *cache.LRU[[]store.CategoryTotal]
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. The by-category cache is shared with the import refresher so
// bulk imports invalidate it too.
func NewServer(addr string, st store.Store, imports *services.ImportService, byCat *cache.LRU[[]store.CategoryTotal]) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:       st,
		imports:     imports,
		byCatCache:  byCat,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /users", s.with(s.handleListUsers))
	mux.HandleFunc("POST /users", s.with(s.handleCreateUser))
	mux.HandleFunc("GET /users/{id}", s.with(s.handleGetUser))
	mux.HandleFunc("PUT /users/{id}", s.with(s.handleUpdateUser))
	mux.HandleFunc("DELETE /users/{id}", s.with(s.handleDeleteUser))

	mux.HandleFunc("GET /categories", s.with(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.with(s.handleCreateCategory))
	mux.HandleFunc("GET /categories/{id}", s.with(s.handleGetCategory))
	mux.HandleFunc("PUT /categories/{id}", s.with(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.with(s.handleDeleteCategory))

	mux.HandleFunc("GET /expenses", s.with(s.handleListExpenses))
	mux.HandleFunc("POST /expenses", s.with(s.handleCreateExpense))
	mux.HandleFunc("GET /expenses/{id}", s.with(s.handleGetExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.with(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.with(s.handleDeleteExpense))
	mux.HandleFunc("POST /expenses/{id}/categories/{cid}", s.with(s.handleAttachCategory))
	mux.HandleFunc("DELETE /expenses/{id}/categories/{cid}", s.with(s.handleDetachCategory))

	mux.HandleFunc("GET /wishlist", s.with(s.handleListWishes))
	mux.HandleFunc("POST /wishlist", s.with(s.handleCreateWish))
	mux.HandleFunc("GET /wishlist/{id}", s.with(s.handleGetWish))
	mux.HandleFunc("PUT /wishlist/{id}", s.with(s.handleUpdateWish))
	mux.HandleFunc("DELETE /wishlist/{id}", s.with(s.handleDeleteWish))

	mux.HandleFunc("GET /budgets", s.with(s.handleListBudgets))
	mux.HandleFunc("POST /budgets", s.with(s.handleCreateBudget))
	mux.HandleFunc("GET /budgets/{id}", s.with(s.handleGetBudget))
	mux.HandleFunc("PUT /budgets/{id}", s.with(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /budgets/{id}", s.with(s.handleDeleteBudget))

	mux.HandleFunc("GET /analytics/total", s.with(s.handleTotalSpend))
	mux.HandleFunc("GET /analytics/by-category", s.with(s.handleSpendByCategory))

	mux.HandleFunc("POST /imports", s.with(s.handleCreateImport))
	mux.HandleFunc("GET /imports/{id}", s.with(s.handleGetImport))

	return s
}

// with adds request IDs, logging, security headers and rate limiting.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Detail: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// invalidateAnalytics drops cached aggregations after any expense write.
func (s *Server) invalidateAnalytics() {
	if s.byCatCache != nil {
		s.byCatCache.Purge()
	}
}

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: "store unavailable"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the listener and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
