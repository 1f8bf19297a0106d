package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
	"github.com/mossvale/stallworks/internal/obs"
)

// sagaStep is one completed cross-partition mutation and its inverse.
type sagaStep struct {
	name       string
	compensate func(ctx context.Context) error
}

// Fulfill runs the fulfillment saga for a request id: load (with legacy
// fallback), reject if expired, validate, claim, re-validate, then execute
// the ordered cross-partition mutations, appending each to the step log only
// on success. Any later failure walks the log in reverse and issues the
// inverse mutation for each completed step before releasing the request back
// to pending and re-raising the original failure.
func (e *Engine) Fulfill(ctx context.Context, id string) (*FulfillmentResult, error) {
	req, fromLegacy, err := e.loadRequest(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrRequestNotFound
	}

	now := e.now()
	if req.Status == domain.RequestStatusExpired || req.Expired(now) {
		if req.Status == domain.RequestStatusPending {
			if eerr := e.ledger.ExpirePending(ctx, id); eerr != nil && !errors.Is(eerr, domain.ErrStatusConflict) {
				e.log.Warn("failed to expire overdue request", zap.String("fulfillment_id", id), zap.Error(eerr))
			}
		}
		return nil, &domain.NotClaimableError{FulfillmentID: id, Reason: domain.ClaimFailExpired}
	}

	// Validate before claiming so common failures (stale price, stock gone)
	// are reported without ever mutating lifecycle state.
	if err := e.Validate(ctx, req, false); err != nil {
		obs.FulfillmentsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	req, err = e.MarkProcessing(ctx, id)
	if err != nil {
		obs.FulfillmentsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// The world may have changed between the pre-claim check and the claim.
	if err := e.Validate(ctx, req, true); err != nil {
		if rerr := e.ledger.ReleaseToPending(ctx, id); rerr != nil {
			e.log.Warn("failed to release request after validation failure", zap.String("fulfillment_id", id), zap.Error(rerr))
		}
		obs.FulfillmentsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	result, steps, err := e.executeSteps(ctx, req)
	if err != nil {
		e.rollback(ctx, id, steps)
		obs.FulfillmentsTotal.WithLabelValues("compensated").Inc()
		return nil, err
	}

	if err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		return e.ledger.CompleteRequest(ctx, id, e.now())
	}); err != nil {
		// The sweeper can win the race and expire the request mid-saga; the
		// mutations must then be undone since the request never completed.
		e.rollback(ctx, id, steps)
		obs.FulfillmentsTotal.WithLabelValues("compensated").Inc()
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, &domain.NotClaimableError{FulfillmentID: id, Reason: domain.ClaimFailExpired}
		}
		return nil, fmt.Errorf("complete request: %w", err)
	}

	if fromLegacy && e.legacy != nil {
		if derr := e.legacy.DeleteRequest(ctx, id); derr != nil {
			e.log.Warn("failed to drop completed legacy request", zap.String("fulfillment_id", id), zap.Error(derr))
		}
	}

	processedAt := e.now()
	req.Status = domain.RequestStatusCompleted
	req.ProcessedAt = &processedAt
	result.Request = req

	obs.FulfillmentsTotal.WithLabelValues("completed").Inc()
	e.log.Debug("fulfillment completed",
		zap.String("fulfillment_id", id),
		zap.String("buyer", req.BuyerCharacter),
		zap.String("vendor", req.VendorCharacter),
		zap.Int("quantity", req.Quantity))
	return result, nil
}

// executeSteps runs the forward mutations in order. Every returned step has
// completed; the caller owns compensation.
func (e *Engine) executeSteps(ctx context.Context, req *domain.FulfillmentRequest) (*FulfillmentResult, []sagaStep, error) {
	vendor, err := e.holdings.GetCharacter(ctx, req.VendorCharacter)
	if err != nil {
		return nil, nil, err
	}
	if vendor == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, req.VendorCharacter)
	}
	stock, err := e.holdings.FindStock(ctx, req.VendorCharacter, req.ItemName)
	if err != nil {
		return nil, nil, err
	}
	if stock == nil {
		return nil, nil, &domain.InsufficientStockError{Owner: req.VendorCharacter, ItemName: req.ItemName, Requested: req.Quantity}
	}

	selfPurchase := vendor.OwnerID == req.BuyerID
	total := req.QuotedTokenTotal()
	result := &FulfillmentResult{
		UnitPrice:    req.QuotedTokenPrice,
		TokenTotal:   total,
		SelfPurchase: selfPurchase,
	}

	var steps []sagaStep
	run := func(name string, op func(ctx context.Context) error, compensate func(ctx context.Context) error) error {
		if err := retry.Do(ctx, e.policy, op); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		steps = append(steps, sagaStep{name: name, compensate: compensate})
		return nil
	}

	if req.Payment == domain.PaymentTokens {
		if selfPurchase {
			// Buyer and vendor share one balance: debit the reference total,
			// skip the vendor-credit half.
			if err := run("debit buyer tokens",
				func(ctx context.Context) error {
					bal, err := e.ledger.ApplyBalanceDelta(ctx, req.BuyerID, -total)
					result.BuyerBalance = bal
					result.VendorBalance = bal
					return err
				},
				func(ctx context.Context) error {
					_, err := e.ledger.ApplyBalanceDelta(ctx, req.BuyerID, total)
					return err
				},
			); err != nil {
				return nil, steps, err
			}
		} else {
			vendorParty := vendor.OwnerID
			if err := run("transfer tokens",
				func(ctx context.Context) error {
					buyerBal, vendorBal, err := e.ledger.TransferTokens(ctx, req.BuyerID, vendorParty, total)
					result.BuyerBalance = buyerBal
					result.VendorBalance = vendorBal
					return err
				},
				func(ctx context.Context) error {
					_, _, err := e.ledger.TransferTokens(ctx, vendorParty, req.BuyerID, total)
					return err
				},
			); err != nil {
				return nil, steps, err
			}
		}
	}

	stockSnapshot := *stock
	if err := run("decrement stock",
		func(ctx context.Context) error {
			remaining, err := e.holdings.ApplyStockDelta(ctx, req.VendorCharacter, req.ItemName, stock.Slot, -req.Quantity, req.Quantity)
			result.StockRemaining = remaining
			return err
		},
		func(ctx context.Context) error {
			return e.holdings.RestoreStock(ctx, &stockSnapshot, req.Quantity)
		},
	); err != nil {
		return nil, steps, err
	}

	if err := run("credit buyer inventory",
		func(ctx context.Context) error {
			held, err := e.holdings.ApplyInventoryDelta(ctx, req.BuyerCharacter, req.ItemName, req.Quantity, 0)
			result.BuyerHolding = held
			return err
		},
		func(ctx context.Context) error {
			_, err := e.holdings.ApplyInventoryDelta(ctx, req.BuyerCharacter, req.ItemName, -req.Quantity, req.Quantity)
			return err
		},
	); err != nil {
		return nil, steps, err
	}

	if req.Payment == domain.PaymentBarter {
		// One unit at a time: a partial shortfall removes only what is
		// actually there, and each removed unit has its own compensation.
		for _, line := range req.BarterOffer {
			item := line.ItemName
			for i := 0; i < line.Quantity; i++ {
				if err := run(fmt.Sprintf("debit barter item %s", item),
					func(ctx context.Context) error {
						_, err := e.holdings.ApplyInventoryDelta(ctx, req.BuyerCharacter, item, -1, 1)
						return err
					},
					func(ctx context.Context) error {
						_, err := e.holdings.ApplyInventoryDelta(ctx, req.BuyerCharacter, item, 1, 0)
						return err
					},
				); err != nil {
					return nil, steps, err
				}
			}
		}
	}

	return result, steps, nil
}

// rollback compensates completed steps in reverse order and releases the
// request back to pending. Compensation runs on a context detached from the
// caller's cancellation: once mutations exist, undoing them must not be
// interrupted. A compensating action that still fails after its own retries
// is a residual-state incident; it is logged at the highest severity and
// counted, never silently dropped.
func (e *Engine) rollback(ctx context.Context, id string, steps []sagaStep) {
	ctx = context.WithoutCancel(ctx)

	var failed []string
	var firstErr error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		obs.CompensationsTotal.Inc()
		if err := retry.Do(ctx, e.policy, step.compensate); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, step.name)
			obs.ResidualIncidentsTotal.Inc()
			e.log.Error("residual state incident: compensation failed, manual reconciliation required",
				zap.String("fulfillment_id", id),
				zap.String("step", step.name),
				zap.Error(err))
		}
	}
	if len(failed) > 0 {
		incident := &domain.ResidualStateError{FulfillmentID: id, Steps: failed, Err: firstErr}
		e.log.Error("fulfillment left residual state", zap.String("fulfillment_id", id), zap.Error(incident))
	}

	if err := e.ledger.ReleaseToPending(ctx, id); err != nil && !errors.Is(err, domain.ErrStatusConflict) {
		e.log.Error("failed to release request after compensation", zap.String("fulfillment_id", id), zap.Error(err))
	}
}
