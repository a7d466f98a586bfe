package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robertmeta/pricewatch/ident"
	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/registry"
	"github.com/robertmeta/pricewatch/tracker"
)

type itemRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func handleIndex(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderDashboard(w); err != nil {
			d.Logger.Error("failed to render dashboard", logger.Error(err))
		}
	}
}

func handleGetItems(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Tracker.GetAll())
	}
}

func handleGetItem(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		data, err := d.Tracker.GetOne(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func handleAddItem(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Name == "" || req.URL == "" {
			writeError(w, http.StatusBadRequest, "name and url are required")
			return
		}

		if err := d.Registry.Add(req.Name, req.URL); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		if err := d.Tracker.Rebuild(d.Registry.Items()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		// First fetch in the background so the add responds immediately.
		id := ident.Derive(req.URL)
		go func() {
			if _, err := d.Tracker.UpdateOne(id); err != nil {
				d.Logger.Warn("initial update failed",
					logger.String("item", id), logger.Error(err))
			}
		}()

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"id":      id,
		})
	}
}

func handleRemoveItem(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		url, ok := d.Tracker.URL(id)
		if !ok {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}

		if err := d.Registry.Remove(url); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if err := d.Tracker.Rebuild(d.Registry.Items()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

func handleUpdateItem(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res, err := d.Tracker.UpdateOne(id)
		if err != nil {
			if errors.Is(err, tracker.ErrUnknownItem) {
				writeError(w, http.StatusNotFound, "item not found")
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleStatus(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Registry.Items())
	}
}

func handleHistory(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Registry.History())
	}
}

func handleRestoreItem(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := d.Registry.Restore(req.URL); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if err := d.Tracker.Rebuild(d.Registry.Items()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

func handleUpdateAll(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.UpdateTrigger == nil {
			writeError(w, http.StatusServiceUnavailable, "updates are not scheduled")
			return
		}
		select {
		case d.UpdateTrigger <- struct{}{}:
			writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
		default:
			// An update is already pending; nothing to queue.
			writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "pending": true})
		}
	}
}

// statusFor maps configuration errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrDuplicateURL):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrNotInHistory):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
