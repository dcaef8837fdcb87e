// Package health serves the bot's liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs
// every registered [Probe] concurrently and answers 503 if any of them
// fails, so an orchestrator stops routing a bot whose Discord connection
// or synthesis backend is down.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds the whole /readyz evaluation. Matched to the Discord
// interaction deadline: a backend that cannot answer within it is too slow
// to serve chat anyway.
const probeTimeout = 3 * time.Second

// Probe is a named readiness check. Run reports nil while the dependency
// can serve; it must honour ctx.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

// probeResult is the per-probe entry in the /readyz response body.
type probeResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type response struct {
	Status string                 `json:"status"`
	Checks map[string]probeResult `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The probe set is fixed at
// construction and the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New builds a [Handler] evaluating the given probes on each /readyz hit.
func New(probes ...Probe) *Handler {
	return &Handler{probes: append([]Probe(nil), probes...)}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz reports liveness. It never fails: reaching it proves the process
// is up and serving.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every probe concurrently under a shared [probeTimeout]
// deadline and reports 503 when any probe fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		checks  = make(map[string]probeResult, len(h.probes))
		healthy = true
	)
	for _, p := range h.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := probeResult{Status: "ok"}
			if err := p.Run(ctx); err != nil {
				res = probeResult{Status: "fail", Error: err.Error()}
			}
			mu.Lock()
			checks[p.Name] = res
			healthy = healthy && res.Error == ""
			mu.Unlock()
		}()
	}
	wg.Wait()

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, response{Status: "fail", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
