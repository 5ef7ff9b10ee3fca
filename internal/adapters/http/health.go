package httpadapter

import (
	"context"
	"sync"
	"time"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"

	healthProbeTimeout = 3 * time.Second
)

// HealthProbe reports whether one downstream dependency answers.
type HealthProbe func(ctx context.Context) error

// HealthChecker fans registered probes out in parallel and aggregates
// per-component results for the healthz endpoint.
type HealthChecker struct {
	mu     sync.Mutex
	probes map[string]HealthProbe
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{probes: make(map[string]HealthProbe)}
}

func (h *HealthChecker) Register(name string, probe HealthProbe) {
	if name == "" || probe == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// HealthReport is the healthz response body. Components maps each probe
// name to "ok" or its error text.
type HealthReport struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Check runs every probe under its own timeout. One failing component
// degrades the whole report.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.Lock()
	probes := make(map[string]HealthProbe, len(h.probes))
	for name, probe := range h.probes {
		probes[name] = probe
	}
	h.mu.Unlock()

	report := HealthReport{
		Status:     healthStatusOK,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string, len(probes)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe HealthProbe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			defer cancel()
			err := probe(probeCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Status = healthStatusDegraded
				report.Components[name] = err.Error()
				return
			}
			report.Components[name] = healthStatusOK
		}(name, probe)
	}
	wg.Wait()

	return report
}
