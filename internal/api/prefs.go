package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crisisrelay/internal/model"
	"crisisrelay/internal/storage"
)

type prefBody struct {
	Value string `json:"value"`
}

func (h *Handler) handleListPrefs(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.ListPrefs(r.Context())
	if err != nil {
		h.log.Error("list prefs", "error", err)
		writeError(h.log, w, http.StatusInternalServerError, "failed to list preferences")
		return
	}
	if prefs == nil {
		prefs = []model.Pref{}
	}
	writeJSON(h.log, w, http.StatusOK, prefs)
}

func (h *Handler) handleGetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	pref, err := h.store.GetPref(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(h.log, w, http.StatusNotFound, "preference not found")
			return
		}
		h.log.Error("get pref", "key", key, "error", err)
		writeError(h.log, w, http.StatusInternalServerError, "failed to read preference")
		return
	}
	writeJSON(h.log, w, http.StatusOK, pref)
}

func (h *Handler) handleSetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body prefBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.SetPref(r.Context(), key, body.Value); err != nil {
		h.log.Error("set pref", "key", key, "error", err)
		writeError(h.log, w, http.StatusInternalServerError, "failed to save preference")
		return
	}

	pref, err := h.store.GetPref(r.Context(), key)
	if err != nil {
		h.log.Error("read back pref", "key", key, "error", err)
		writeError(h.log, w, http.StatusInternalServerError, "failed to read preference")
		return
	}
	writeJSON(h.log, w, http.StatusOK, pref)
}

func (h *Handler) handleDeletePref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.store.DeletePref(r.Context(), key); err != nil {
		h.log.Error("delete pref", "key", key, "error", err)
		writeError(h.log, w, http.StatusInternalServerError, "failed to delete preference")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
