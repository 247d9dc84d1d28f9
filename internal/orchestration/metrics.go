package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegisterMetrics exposes session counts on registry.
func RegisterMetrics(registry prometheus.Registerer, svc Service, listener *Listener) {
	factory := promauto.With(registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nexus_orchestration_active_sessions",
		Help: "Sessions that have not expired or been released",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := svc.ActiveSessions(ctx)
		if err != nil {
			slog.Warn("Failed to count active sessions", "error", err)
			return 0
		}
		return float64(n)
	})

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "nexus_orchestration_confirmed_matches_total",
		Help: "Matches confirmed by the matchmaker",
	}, func() float64 {
		return float64(listener.ConfirmedMatches())
	})
}
