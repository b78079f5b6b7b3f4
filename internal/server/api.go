package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// API is the read-only HTTP observability surface: health/readiness, Prometheus metrics, and a
// small JSON API for inspecting sync state without touching the database
// directly.
//
// Grounded on original_source/api/server.py: create_app, re-expressed
// over go-chi/chi instead of FastAPI routing, encoding responses with
// encoding/json (see writeJSON) rather than FastAPI's automatic
// serialization.
type API struct {
	tracks *store.TrackStore
	state *store.StateStore
	events *store.EventLog
	startedAt time.Time
}

// NewAPI builds the observability surface over an already-open database.
func NewAPI(tracks *store.TrackStore, state *store.StateStore, events *store.EventLog) *API {
	return &API{tracks: tracks, state: state, events: events, startedAt: time.Now()}
}

// Router builds the chi.Router serving this API, with request-id
// correlation and permissive CORS so a companion dashboard can poll it
// cross-origin.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", a.handleHealth)
	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/stats", func(r chi.Router) {
		r.Get("/", a.handleStats)
	})
	r.Get("/counts", a.handleCounts)
	r.Get("/tracks", a.handleTracks)
	r.Get("/tracks/{id}", a.handleTrackDetail)
	r.Get("/failed", a.handleFailed)
	r.Get("/pending", a.handlePending)
	r.Get("/logs", a.handleLogs)
	r.Get("/sync-state", a.handleSyncState)

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.tracks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "reason": "no_db"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.Up.Set(1)
	uptime := time.Since(a.startedAt).Seconds()
	metrics.UptimeSeconds.Set(uptime)

	stats, err := a.tracks.GetStats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]any{
		"total": stats.Total,
		"synced": stats.Synced,
		"failed": stats.Failed,
		"duplicate": stats.Duplicate,
		"pending": stats.Pending,
		"success_rate": stats.SuccessRate,
		"uptime_seconds": uptime,
	}
	for _, d := range models.Directions {
		if ts, ok, _ := a.state.LastSync(d); ok {
			resp["last_"+string(d)+"_sync"] = ts.Unix()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.tracks.GetCounts()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleTracks(w http.ResponseWriter, r *http.Request) {
	direction := models.Direction(r.URL.Query().Get("direction"))
	status := r.URL.Query().Get("status")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tracks, err := a.tracks.GetRecent(limit, direction)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if status != "" {
		filtered := tracks[:0]
		for _, t := range tracks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tracks = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (a *API) handleTrackDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid track id"})
		return
	}
	t, err := a.tracks.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	logs, _ := a.events.Recent(20, &id)
	writeJSON(w, http.StatusOK, map[string]any{"track": t, "logs": logs})
}

func (a *API) handleFailed(w http.ResponseWriter, r *http.Request) {
	direction := models.Direction(r.URL.Query().Get("direction"))
	failed, err := a.tracks.GetFailed(direction)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(failed), "tracks": failed})
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	total := 0
	for _, d := range models.Directions {
		pending, err := a.tracks.GetPending(d)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp[string(d)] = pending
		total += len(pending)
	}
	resp["count"] = total
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	var trackID *int64
	if raw := r.URL.Query().Get("track_id"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			trackID = &n
		}
	}
	logs, err := a.events.Recent(limit, trackID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleSyncState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	for _, d := range models.Directions {
		if ts, ok, _ := a.state.LastSync(d); ok {
			resp["last_"+string(d)+"_sync"] = ts.Unix()
		}
	}
	if snapshot, err := a.state.Snapshot("yt"); err == nil {
		resp["yt_playlist_track_count"] = len(snapshot)
	}
	if snapshot, err := a.state.Snapshot("sp"); err == nil {
		resp["sp_playlist_track_count"] = len(snapshot)
	}
	writeJSON(w, http.StatusOK, resp)
}
