// Package http exposes the JSON API of the tracker.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tresor/internal/auth"
	"tresor/internal/cache"
	applog "tresor/internal/log"
	"tresor/internal/services"
)

// Server wires the services behind the JSON API.
type Server struct {
	http.Server

	auth         *auth.Service
	transactions *services.TransactionService
	budgets      *services.BudgetService
	alerts       *services.AlertService
	receipts     *services.ReceiptService
	snapshots    SnapshotLoader

	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *applog.StructuredLogger

	// Dashboard snapshots are cached per user and month and dropped
	// on any write for that user.
	snapshotCache *cache.LRUCache[services.Snapshot]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// SnapshotLoader builds the dashboard view for one user and month.
type SnapshotLoader func(ctx context.Context, userID string, month string) (services.Snapshot, error)

// Deps groups the collaborators a Server needs.
type Deps struct {
	Auth         *auth.Service
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Alerts       *services.AlertService
	Receipts     *services.ReceiptService
	Snapshots    SnapshotLoader
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	baseLogger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	})

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(baseLogger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:          deps.Auth,
		transactions:  deps.Transactions,
		budgets:       deps.Budgets,
		alerts:        deps.Alerts,
		receipts:      deps.Receipts,
		snapshots:     deps.Snapshots,
		rateLimiter:   newRateLimiter(),
		metrics:       &securityMetrics{},
		logger:        applog.NewStructuredLogger(baseLogger),
		snapshotCache: cache.NewLRUCache[services.Snapshot](200, 30*time.Second),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.snapshotCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.wrap(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.wrap(s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.authed(s.handleLogout))
	mux.HandleFunc("GET /api/auth/me", s.authed(s.handleMe))

	mux.HandleFunc("GET /api/categories", s.wrap(s.handleCategories))

	mux.HandleFunc("GET /api/transactions", s.authed(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.authed(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.authed(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/budgets", s.authed(s.handleListBudgets))
	mux.HandleFunc("GET /api/budgets/status", s.authed(s.handleEvaluateAlerts))
	mux.HandleFunc("POST /api/budgets", s.authed(s.handleCreateBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.authed(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.authed(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/dashboard", s.authed(s.handleDashboard))
	mux.HandleFunc("POST /api/alerts/evaluate", s.authed(s.handleEvaluateAlerts))

	mux.HandleFunc("GET /api/receipts/session", s.authed(s.handleReceiptSession))
	mux.HandleFunc("POST /api/receipts/upload", s.authed(s.handleReceiptUpload))
	mux.HandleFunc("PUT /api/receipts/drafts/{id}", s.authed(s.handleUpdateDraft))
	mux.HandleFunc("DELETE /api/receipts/drafts/{id}", s.authed(s.handleRemoveDraft))
	mux.HandleFunc("POST /api/receipts/manual", s.authed(s.handleUseManualForm))
	mux.HandleFunc("PUT /api/receipts/form", s.authed(s.handleSetForm))
	mux.HandleFunc("POST /api/receipts/submit", s.authed(s.handleReceiptSubmit))
	mux.HandleFunc("POST /api/receipts/cancel", s.authed(s.handleReceiptCancel))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) snapshotCacheKey(userID, month string) string {
	return userID + ":" + month
}

func (s *Server) invalidateSnapshots(ctx context.Context, userID string) {
	if n := s.snapshotCache.DeletePrefix(userID + ":"); n > 0 {
		slog.DebugContext(ctx, "Dropped cached snapshots", "user_id", userID, "count", n)
	}
}

func (s *Server) loadSnapshot(ctx context.Context, userID, month string) (services.Snapshot, error) {
	key := s.snapshotCacheKey(userID, month)
	if snap, ok := s.snapshotCache.Get(key); ok {
		slog.DebugContext(ctx, "Snapshot cache hit", "user_id", userID, "month", month)
		return snap, nil
	}

	snap, err := s.snapshots(ctx, userID, month)
	if err != nil {
		return services.Snapshot{}, err
	}
	s.snapshotCache.Set(key, snap)
	return snap, nil
}
