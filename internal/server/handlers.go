package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/divmon/internal/domain"
	"github.com/aristath/divmon/internal/monitor"
	"github.com/aristath/divmon/internal/state"
)

// Handlers serves the read-only status endpoints.
type Handlers struct {
	log         zerolog.Logger
	runner      *monitor.Runner
	store       *state.Store
	instruments []domain.Instrument
	startupTime time.Time
}

// NewHandlers creates the status handlers.
func NewHandlers(log zerolog.Logger, runner *monitor.Runner, store *state.Store, instruments []domain.Instrument) *Handlers {
	return &Handlers{
		log:         log.With().Str("component", "handlers").Logger(),
		runner:      runner,
		store:       store,
		instruments: instruments,
		startupTime: time.Now(),
	}
}

// HandleHealth responds to liveness probes.
// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

// HandleStatus returns the most recent run summary.
// GET /api/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var last *monitor.Summary
	if h.runner != nil {
		last = h.runner.LastRun()
	}
	if last == nil {
		h.writeJSON(w, map[string]string{"status": "no runs yet"})
		return
	}
	h.writeJSON(w, last)
}

// instrumentView joins static configuration with persisted state.
type instrumentView struct {
	Ticker      string                  `json:"ticker"`
	DisplayName string                  `json:"display_name"`
	Offset      float64                 `json:"threshold_offset"`
	State       *domain.InstrumentState `json:"state,omitempty"`
}

// HandleInstruments returns every configured instrument with its current
// persisted state.
// GET /api/instruments
func (h *Handlers) HandleInstruments(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Load()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load state document")
		http.Error(w, "failed to load state", http.StatusInternalServerError)
		return
	}

	views := make([]instrumentView, 0, len(h.instruments))
	for _, inst := range h.instruments {
		views = append(views, instrumentView{
			Ticker:      inst.Ticker,
			DisplayName: inst.DisplayName,
			Offset:      inst.ThresholdOffset,
			State:       doc[inst.Ticker],
		})
	}
	h.writeJSON(w, views)
}

// HandleSystem returns process uptime and host resource usage.
// GET /api/system
func (h *Handlers) HandleSystem(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramUsed := h.systemStats()
	h.writeJSON(w, map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramUsed,
	})
}

// systemStats samples CPU briefly so the endpoint stays fast.
func (h *Handlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
