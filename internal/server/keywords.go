package server

import (
	"errors"
	"net/http"
	"strings"

	"hotspot/internal/model"
	"hotspot/internal/store"
)

func (a *API) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListKeywords(r.Context())
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword string  `json:"keyword"`
		Source  *string `json:"source"`
	}
	if err := decodeJSON(r, a.cfg.HTTP.MaxBodyBytes, &req); err != nil {
		respondErr(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		respondError(w, http.StatusBadRequest, "Keyword is required")
		return
	}
	source := model.SelectAll
	if req.Source != nil {
		sel, err := model.ParseSourceSelection(*req.Source)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err)
			return
		}
		source = sel
	}
	k, err := a.store.CreateKeyword(r.Context(), req.Keyword, source)
	if errors.Is(err, store.ErrDuplicate) {
		respondError(w, http.StatusBadRequest, "Keyword already exists")
		return
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, k)
}

func (a *API) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool   `json:"isActive"`
		Source   *string `json:"source"`
	}
	if err := decodeJSON(r, a.cfg.HTTP.MaxBodyBytes, &req); err != nil {
		respondErr(w, http.StatusBadRequest, err)
		return
	}
	patch := store.KeywordPatch{IsActive: req.IsActive}
	if req.Source != nil {
		sel, err := model.ParseSourceSelection(*req.Source)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err)
			return
		}
		patch.Source = &sel
	}
	k, err := a.store.UpdateKeyword(r.Context(), r.PathValue("id"), patch)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Keyword not found")
		return
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, k)
}

func (a *API) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	err := a.store.DeleteKeyword(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Keyword not found")
		return
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
