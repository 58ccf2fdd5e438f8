// Package api exposes the HTTP surface consumed by the dashboard shell:
// the GDACS feed endpoint, the offline queue, connection state, and
// user preferences.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"crisisrelay/internal/gdacs"
	"crisisrelay/internal/model"
	"crisisrelay/internal/queue"
	"crisisrelay/internal/storage"
)

// Handler carries the dependencies and server-held state for all routes.
type Handler struct {
	log      *slog.Logger
	store    storage.Storage
	feeds    *gdacs.Client
	sender   queue.Sender
	cacheTTL time.Duration

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	// The queue and the reported link status are caller-owned state in
	// the library contract; the server holds them on the shell's behalf.
	queueMu   sync.Mutex
	queue     []model.QueuedMessage
	reachable bool
	peers     int
	draining  bool
}

type cacheEntry struct {
	envelope feedSuccess
	storedAt time.Time
}

// New creates a Handler. The sender is what a drain delivers through.
func New(log *slog.Logger, store storage.Storage, feeds *gdacs.Client, sender queue.Sender, cacheTTL time.Duration) *Handler {
	return &Handler{
		log:      log,
		store:    store,
		feeds:    feeds,
		sender:   sender,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cacheEntry),
		queue:    []model.QueuedMessage{},
	}
}

// Router builds the chi router with the full middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/feed", h.handleFeed)

		r.Get("/connection", h.handleGetConnection)
		r.Put("/connection", h.handlePutConnection)

		r.Get("/queue", h.handleGetQueue)
		r.Delete("/queue", h.handleClearQueue)
		r.Post("/queue/messages", h.handleEnqueue)
		r.Post("/queue/drain", h.handleDrain)

		r.Get("/prefs", h.handleListPrefs)
		r.Get("/prefs/{key}", h.handleGetPref)
		r.Put("/prefs/{key}", h.handleSetPref)
		r.Delete("/prefs/{key}", h.handleDeletePref)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// errorBody is the generic failure shape for non-feed routes.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(log *slog.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(log, w, status, errorBody{Success: false, Error: msg})
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode response", "error", err)
	}
}
