package api

import (
	"encoding/json"
	"net/http"

	"crisisrelay/internal/connstate"
	"crisisrelay/internal/model"
	"crisisrelay/internal/queue"
)

type connectionBody struct {
	Reachable bool `json:"reachable"`
	Peers     int  `json:"peers"`
}

type connectionResponse struct {
	State       model.ConnectionState `json:"state"`
	Label       string                `json:"label"`
	Description string                `json:"description"`
	Reachable   bool                  `json:"reachable"`
	Peers       int                   `json:"peers"`
}

func (h *Handler) connectionResponse() connectionResponse {
	state := connstate.Detect(h.reachable, h.peers)
	info := connstate.Describe(state)
	return connectionResponse{
		State:       state,
		Label:       info.Label,
		Description: info.Description,
		Reachable:   h.reachable,
		Peers:       h.peers,
	}
}

func (h *Handler) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	h.queueMu.Lock()
	resp := h.connectionResponse()
	h.queueMu.Unlock()
	writeJSON(h.log, w, http.StatusOK, resp)
}

// handlePutConnection records the link status reported by the shell.
// The state itself is always derived, never stored.
func (h *Handler) handlePutConnection(w http.ResponseWriter, r *http.Request) {
	var body connectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.queueMu.Lock()
	h.reachable = body.Reachable
	h.peers = body.Peers
	resp := h.connectionResponse()
	h.queueMu.Unlock()

	h.log.Info("connection updated", "state", resp.State, "peers", body.Peers)
	writeJSON(h.log, w, http.StatusOK, resp)
}

type queueResponse struct {
	Connection connectionResponse    `json:"connection"`
	Count      int                   `json:"count"`
	Messages   []model.QueuedMessage `json:"messages"`
}

func (h *Handler) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	h.queueMu.Lock()
	resp := queueResponse{
		Connection: h.connectionResponse(),
		Count:      len(h.queue),
		Messages:   append([]model.QueuedMessage{}, h.queue...),
	}
	h.queueMu.Unlock()
	writeJSON(h.log, w, http.StatusOK, resp)
}

type enqueueBody struct {
	Type    model.MessageType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body enqueueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.queueMu.Lock()
	updated, err := queue.Append(h.queue, body.Type, body.Payload)
	if err != nil {
		h.queueMu.Unlock()
		// Unknown type is a caller bug, not a transient condition.
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}
	h.queue = updated
	msg := updated[len(updated)-1]
	h.queueMu.Unlock()

	h.log.Info("message queued", "id", msg.ID, "type", msg.Type)
	writeJSON(h.log, w, http.StatusCreated, msg)
}

func (h *Handler) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	h.queueMu.Lock()
	cleared := len(h.queue)
	h.queue = []model.QueuedMessage{}
	h.queueMu.Unlock()

	h.log.Info("queue cleared", "count", cleared)
	writeJSON(h.log, w, http.StatusOK, map[string]any{
		"success": true,
		"cleared": cleared,
	})
}

type drainResponse struct {
	Success    bool     `json:"success"`
	Processed  int      `json:"processed"`
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
	Remaining  int      `json:"remaining"`
}

// handleDrain runs one delivery pass over the held queue. Only one
// drain may run at a time; a second request while one is in flight is
// refused rather than double-processing the queue.
func (h *Handler) handleDrain(w http.ResponseWriter, r *http.Request) {
	h.queueMu.Lock()
	if h.draining {
		h.queueMu.Unlock()
		writeError(h.log, w, http.StatusConflict, "drain already in progress")
		return
	}
	h.draining = true
	snapshot := append([]model.QueuedMessage{}, h.queue...)
	h.queueMu.Unlock()

	processed := 0
	result := queue.Process(r.Context(), snapshot, h.sender, func(done, total int) {
		processed = done
	})

	failed := make(map[string]bool, len(result.Failed))
	for _, id := range result.Failed {
		failed[id] = true
	}

	// Successful messages leave the queue; failed ones stay visible for
	// manual retry or dismissal, with their retry count bumped.
	h.queueMu.Lock()
	kept := h.queue[:0]
	for _, msg := range h.queue {
		if failed[msg.ID] {
			msg.Status = model.StatusFailed
			msg.Retries++
			kept = append(kept, msg)
		} else if !contains(result.Successful, msg.ID) {
			// Enqueued after the snapshot was taken.
			kept = append(kept, msg)
		}
	}
	h.queue = append([]model.QueuedMessage{}, kept...)
	remaining := len(h.queue)
	h.draining = false
	h.queueMu.Unlock()

	h.log.Info("queue drained",
		"processed", processed,
		"successful", len(result.Successful),
		"failed", len(result.Failed),
	)
	writeJSON(h.log, w, http.StatusOK, drainResponse{
		Success:    true,
		Processed:  processed,
		Successful: result.Successful,
		Failed:     result.Failed,
		Remaining:  remaining,
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
