package api

import (
	"net/http"
	"time"

	"crisisrelay/internal/gdacs"
	"crisisrelay/internal/model"
)

type feedSuccess struct {
	Success     bool             `json:"success"`
	Count       int              `json:"count"`
	Source      string           `json:"source"`
	LastUpdated string           `json:"lastUpdated"`
	Incidents   []model.Incident `json:"incidents"`
}

type feedFailure struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	Incidents []model.Incident `json:"incidents"`
}

// handleFeed fetches and normalizes the requested GDACS feed. The
// response is HTTP 200 either way: upstream unavailability degrades to
// an empty-but-valid result so the dashboard never breaks on it.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	url, key := gdacs.Resolve(r.URL.Query().Get("feed"))

	if cached, ok := h.cachedFeed(key); ok {
		writeJSON(h.log, w, http.StatusOK, cached)
		return
	}

	feed, err := h.feeds.Fetch(r.Context(), url)
	if err != nil {
		h.log.Error("fetch feed", "feed", key, "url", url, "error", err)
		writeJSON(h.log, w, http.StatusOK, feedFailure{
			Success:   false,
			Error:     "Failed to fetch live disaster data",
			Message:   err.Error(),
			Incidents: []model.Incident{},
		})
		return
	}

	now := time.Now().UTC()
	incidents := gdacs.Normalize(h.log, feed, now)

	envelope := feedSuccess{
		Success:     true,
		Count:       len(incidents),
		Source:      gdacs.Source,
		LastUpdated: now.Format(time.RFC3339),
		Incidents:   incidents,
	}
	h.storeFeed(key, envelope)

	h.log.Info("feed refreshed", "feed", key, "count", len(incidents))
	writeJSON(h.log, w, http.StatusOK, envelope)
}

// cachedFeed returns the last successful envelope for key if it is
// still fresh. Failures are never cached.
func (h *Handler) cachedFeed(key string) (feedSuccess, bool) {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	entry, ok := h.cache[key]
	if !ok || time.Since(entry.storedAt) > h.cacheTTL {
		return feedSuccess{}, false
	}
	return entry.envelope, true
}

func (h *Handler) storeFeed(key string, envelope feedSuccess) {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	h.cache[key] = cacheEntry{envelope: envelope, storedAt: time.Now()}
}
