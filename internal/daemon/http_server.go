package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/state"
	"git.home.luguber.info/inful/docsetbot/internal/version"
)

// defaultStatusLimit is how many runs /status lists without ?limit.
const defaultStatusLimit = 20

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status   string      `json:"status"`
	Version  string      `json:"version"`
	Uptime   string      `json:"uptime"`
	Library  string      `json:"library"`
	Cron     string      `json:"cron"`
	NextRun  *time.Time  `json:"next_run,omitempty"`
	LastTick *TickStatus `json:"last_tick,omitempty"`
}

// RunView is one run as listed by /status.
type RunView struct {
	ID         string     `json:"id"`
	Library    string     `json:"library"`
	Version    string     `json:"version"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
	PRURL      string     `json:"pr_url,omitempty"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Library string    `json:"library"`
	Runs    []RunView `json:"runs"`
}

// Handler returns the admin mux.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("GET /healthz", d.handleHealth)
	mux.HandleFunc("GET /status", d.handleStatus)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cfg := d.Config()
	d.mu.RLock()
	started := d.startTime
	d.mu.RUnlock()

	resp := HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Library:  cfg.Library.Name,
		Cron:     cfg.Schedule.Cron,
		LastTick: d.LastTick(),
	}
	if !started.IsZero() {
		resp.Uptime = time.Since(started).Truncate(time.Second).String()
	}
	if next := d.scheduler.NextRun(); !next.IsZero() {
		resp.NextRun = &next
	}
	if resp.LastTick != nil && resp.LastTick.Error != "" {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultStatusLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := d.store.RecentRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list runs", logfields.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot list runs"})
		return
	}
	resp := StatusResponse{Library: d.Config().Library.Name, Runs: make([]RunView, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunView(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toRunView(run state.Run) RunView {
	v := RunView{
		ID:        run.ID,
		Library:   run.Library,
		Version:   run.Version,
		Status:    string(run.Status),
		StartedAt: run.StartedAt.UTC(),
		PRURL:     run.PRURL,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt.UTC()
		v.FinishedAt = &finished
		v.DurationMS = run.Duration().Milliseconds()
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
	}
}
