// Package obs holds the logger and metrics shared across the engine.
package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production logger. Level is one of debug, info, warn,
// error; empty means info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

var (
	// FulfillmentsTotal counts saga runs by terminal outcome.
	FulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stallworks",
			Name:      "fulfillments_total",
			Help:      "Fulfillment saga runs by outcome.",
		}, []string{"outcome"})

	// CompensationsTotal counts compensating actions issued on failed sagas.
	CompensationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stallworks",
			Name:      "compensations_total",
			Help:      "Compensating actions issued after a failed saga step.",
		})

	// ResidualIncidentsTotal counts compensations that themselves failed and
	// require manual reconciliation.
	ResidualIncidentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stallworks",
			Name:      "residual_incidents_total",
			Help:      "Compensation failures leaving residual state.",
		})

	// SweptRequestsTotal counts requests moved to expired by the sweeper.
	SweptRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stallworks",
			Name:      "swept_requests_total",
			Help:      "Requests expired by the janitor sweep.",
		})
)

func init() {
	prometheus.MustRegister(FulfillmentsTotal, CompensationsTotal, ResidualIncidentsTotal, SweptRequestsTotal)
}
