// Package service implements the fulfillment saga engine: request lifecycle,
// re-validation, the expiry sweeper and the multi-step saga with manual
// compensation that runs when a request is accepted.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
	"github.com/mossvale/stallworks/internal/port"
)

// Engine coordinates the two storage partitions. It is the only component
// aware that both exist; everything below it sees exactly one.
type Engine struct {
	ledger   port.LedgerRepository
	holdings port.HoldingsRepository
	cache    port.CacheRepository
	legacy   port.LegacyRequestStore // optional, read-through archive

	log    *zap.Logger
	policy retry.Policy
	ttl    time.Duration
	now    func() time.Time
}

// Options tunes an Engine. The zero value works: nop logger, default retry
// policy, default request TTL, no legacy archive.
type Options struct {
	Legacy     port.LegacyRequestStore
	Logger     *zap.Logger
	Policy     retry.Policy
	RequestTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewEngine(ledger port.LedgerRepository, holdings port.HoldingsRepository, cache port.CacheRepository, opts Options) *Engine {
	e := &Engine{
		ledger:   ledger,
		holdings: holdings,
		cache:    cache,
		legacy:   opts.Legacy,
		log:      opts.Logger,
		policy:   opts.Policy,
		ttl:      opts.RequestTTL,
		now:      opts.Now,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.ttl <= 0 {
		e.ttl = domain.DefaultRequestTTL
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// FulfillmentResult is the success payload handed to the presentation layer
// for message formatting. The engine never formats messages itself.
type FulfillmentResult struct {
	Request        *domain.FulfillmentRequest
	UnitPrice      int64
	TokenTotal     int64
	BuyerBalance   int64
	VendorBalance  int64
	StockRemaining int
	BuyerHolding   int
	SelfPurchase   bool
}
