package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hotspot/internal/auth"
	"hotspot/internal/config"
	"hotspot/internal/ingest"
	"hotspot/internal/scheduler"
	"hotspot/internal/store"
)

const recentWindow = 24 * time.Hour

type Checker interface {
	Check(ctx context.Context) (ingest.Result, error)
}

type ProgressSource interface {
	LastProgress() (string, time.Time)
}

type Deps struct {
	Config    config.Config
	Store     *store.Store
	Checker   Checker
	Scheduler *scheduler.Scheduler
	Progress  ProgressSource
	Guard     *auth.Guard
	Logger    *slog.Logger
}

type API struct {
	cfg       config.Config
	store     *store.Store
	checker   Checker
	scheduler *scheduler.Scheduler
	progress  ProgressSource
	guard     *auth.Guard
	log       *slog.Logger
	now       func() time.Time
}

func New(d Deps) *API {
	a := &API{
		cfg:       d.Config,
		store:     d.Store,
		checker:   d.Checker,
		scheduler: d.Scheduler,
		progress:  d.Progress,
		guard:     d.Guard,
		log:       d.Logger,
		now:       time.Now,
	}
	if a.guard == nil {
		a.guard, _ = auth.New("", nil)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.Handle("POST /api/check", a.adminOnly(a.handleCheck))
	mux.HandleFunc("GET /api/check/history", a.handleCheckHistory)
	mux.HandleFunc("GET /api/check/status", a.handleCheckStatus)

	mux.HandleFunc("GET /api/hotspots", a.handleListHotspots)
	mux.HandleFunc("GET /api/hotspots/statistics", a.handleStatistics)
	mux.HandleFunc("GET /api/hotspots/dashboard/latest", a.handleLatestHotspots)
	mux.HandleFunc("GET /api/hotspots/{id}", a.handleGetHotspot)
	mux.HandleFunc("GET /api/search", a.handleSearch)

	mux.HandleFunc("GET /api/keywords", a.handleListKeywords)
	mux.Handle("POST /api/keywords", a.adminOnly(a.handleCreateKeyword))
	mux.Handle("PUT /api/keywords/{id}", a.adminOnly(a.handleUpdateKeyword))
	mux.Handle("DELETE /api/keywords/{id}", a.adminOnly(a.handleDeleteKeyword))

	mux.HandleFunc("GET /api/notifications", a.handleListNotifications)
	mux.Handle("PUT /api/notifications/read-all", a.adminOnly(a.handleReadAllNotifications))
	mux.Handle("PUT /api/notifications/{id}/read", a.adminOnly(a.handleReadNotification))
	mux.HandleFunc("GET /api/notifications/count/unread", a.handleUnreadCount)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	return a.logRequests(a.withJSON(mux))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleCheck runs the check synchronously. The run is detached from the
// request context so a disconnecting client does not cut it short.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), a.cfg.RunTimeout())
	defer cancel()
	var res ingest.Result
	run := func(ctx context.Context) error {
		var err error
		res, err = a.checker.Check(ctx)
		return err
	}
	var err error
	if a.scheduler != nil {
		err = a.scheduler.Track(ctx, "manual", run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) handleCheckHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10, 1, 100)
	items, err := a.store.ListCheckHistory(r.Context(), limit)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	if a.scheduler != nil {
		out["scheduler"] = a.scheduler.Snapshot()
	}
	if a.progress != nil {
		msg, at := a.progress.LastProgress()
		out["lastProgress"] = msg
		out["lastProgressAt"] = at
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondErr(w http.ResponseWriter, code int, err error) {
	respondError(w, code, err.Error())
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]any{"error": msg})
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, maxBody int64, out any) error {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// queryInt reads a positive integer parameter, falling back to def when it
// is absent or malformed and clamping to [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

func (a *API) withJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (a *API) adminOnly(h http.HandlerFunc) http.Handler {
	return a.guard.AdminOnly(h, respondError)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("http: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start).Round(time.Millisecond)))
	})
}
