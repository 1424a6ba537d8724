package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/stratplan/pkg/logger"
)

// Probe checks one dependency.
type Probe func(context.Context) error

// HealthReport is the readiness response body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always answers 200.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, http.StatusOK, HealthReport{Status: "ok"})
	}
}

// ReadinessHandler runs every probe concurrently with timeout and answers
// 200 when all pass, 503 otherwise.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, probes map[string]Probe) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu     sync.Mutex
			g      errgroup.Group
			report = HealthReport{Status: "ok", Checks: make(map[string]string, len(probes))}
		)
		for name, probe := range probes {
			g.Go(func() error {
				result := "ok"
				if err := probe(ctx); err != nil {
					log.ErrorContext(ctx, "readiness check failed", slog.String("probe", name), logger.Error(err))
					result = "unavailable"
				}
				mu.Lock()
				defer mu.Unlock()
				report.Checks[name] = result
				if result != "ok" {
					report.Status = "unavailable"
				}
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, report)
	}
}

func writeReport(w http.ResponseWriter, status int, report HealthReport) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
