package server

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"hotspot/internal/model"
	"hotspot/internal/store"
)

const searchLimit = 50

type pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type hotspotPage struct {
	Data       []model.Hotspot `json:"data"`
	Pagination pagination      `json:"pagination"`
}

func (a *API) handleListHotspots(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 1, math.MaxInt32)
	limit := queryInt(r, "limit", 20, 1, 100)
	items, total, err := a.store.ListHotspots(r.Context(), store.HotspotFilter{
		Source: strings.TrimSpace(r.URL.Query().Get("source")),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, hotspotPage{
		Data: items,
		Pagination: pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	})
}

func (a *API) handleGetHotspot(w http.ResponseWriter, r *http.Request) {
	h, err := a.store.GetHotspot(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Hotspot not found")
		return
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

func (a *API) handleLatestHotspots(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.LatestHotspots(r.Context(), queryInt(r, "limit", 10, 1, 100))
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Statistics(r.Context(), a.now(), recentWindow)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}
	items, err := a.store.SearchHotspots(r.Context(), q, searchLimit)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
