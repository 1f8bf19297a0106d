package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mossvale/stallworks/internal/obs"
)

// SweepExpired moves every pending or processing request whose TTL has
// passed to expired. It only ever advances toward expired, so it is
// idempotent and safe to run concurrently with itself and with in-flight
// sagas.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	n, err := e.ledger.ExpireOverdue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired requests: %w", err)
	}
	if n > 0 {
		e.log.Info("expired stale requests", zap.Int64("count", n))
		obs.SweptRequestsTotal.Add(float64(n))
	}
	return n, nil
}

// RunSweeper runs SweepExpired on a fixed interval until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SweepExpired(ctx); err != nil {
				e.log.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
