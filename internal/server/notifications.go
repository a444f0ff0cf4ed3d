package server

import (
	"errors"
	"net/http"

	"hotspot/internal/store"
)

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	items, err := a.store.ListNotifications(r.Context(), unreadOnly)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.MarkNotificationRead(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (a *API) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	if _, err := a.store.MarkAllNotificationsRead(r.Context()); err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.CountUnreadNotifications(r.Context())
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": n})
}
