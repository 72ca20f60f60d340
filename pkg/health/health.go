// Package health implements liveness and readiness probing for long-running
// services. Registered checks run periodically in the background; the HTTP
// endpoints only report the latest recorded outcome and never execute a check
// inline, so a slow dependency cannot stall a probe request.
//
// Checks carry consecutive-failure and consecutive-success thresholds so a
// single flaky observation does not flip the reported state.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// probe is one registered check plus its recorded state.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu         sync.Mutex
	healthy    bool
	lastErr    error
	failStreak int
	okStreak   int
}

// observe runs the check once and folds the outcome into the streak counters.
func (p *probe) observe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(checkCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.okStreak = 0
		p.failStreak++
		if p.failStreak >= defaultFailureThreshold {
			p.healthy = false
		}
		return
	}
	p.failStreak = 0
	p.okStreak++
	if p.okStreak >= defaultSuccessThreshold {
		p.healthy = true
	}
}

// state returns the current health flag and last error together.
func (p *probe) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastErr
}

// Health tracks all probes of a service and serves the probe endpoints.
type Health struct {
	mu        sync.RWMutex
	ready     bool
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health with no probes. The service reports not-ready until
// SetReady(true) is called after startup completes.
func New() *Health {
	return &Health{}
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	// Probes start healthy so a service is not reported broken before the
	// first observation lands.
	return &probe{name: name, timeout: timeout, check: check, healthy: true}
}

// AddLivenessCheck registers a check that decides whether the process itself
// is functional, such as goroutine or GC pressure checks.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check that decides whether the service can
// take traffic, such as database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one background goroutine per registered probe, each
// observing at the given interval until Stop or context cancellation.
// Register all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append(append([]*probe(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			p.observe(ctx)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.observe(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels the background probe goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Flip it to false at the start of
// graceful shutdown so load balancers drain the instance.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

// IsReady reports whether the manual gate is open and every readiness probe
// is currently healthy.
func (h *Health) IsReady() bool {
	h.mu.RLock()
	ready := h.ready
	probes := h.readiness
	h.mu.RUnlock()

	if !ready {
		return false
	}
	for _, p := range probes {
		if ok, _ := p.state(); !ok {
			return false
		}
	}
	return true
}

// probeResponse is the JSON body served by both endpoints.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the liveness probe: 200 while every liveness check
// holds, 503 with per-check failure details otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := h.liveness
	h.mu.RUnlock()

	writeProbeResponse(w, failing(probes))
}

// ReadyEndpoint serves the readiness probe. The manual gate set by SetReady
// participates alongside the registered readiness checks.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ready := h.ready
	probes := h.readiness
	h.mu.RUnlock()

	failures := failing(probes)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeProbeResponse(w, failures)
}

func failing(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if ok, err := p.state(); !ok {
			msg := "check is unhealthy"
			if err != nil {
				msg = err.Error()
			}
			failures[p.name] = msg
		}
	}
	return failures
}

func writeProbeResponse(w http.ResponseWriter, failures map[string]string) {
	resp := probeResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp = probeResponse{Status: "unhealthy", Checks: failures}
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
