package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
)

// CreateRequestInput carries the terms the buyer submits against a vendor's
// live stock. The creation call performs its own live-price read and
// persists the snapshot.
type CreateRequestInput struct {
	BuyerID         string
	BuyerCharacter  string
	VendorCharacter string
	ItemName        string
	Quantity        int
	Payment         domain.PaymentMethod
	BarterOffer     []domain.BarterLine
}

func (in *CreateRequestInput) check() error {
	if in.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	switch in.Payment {
	case domain.PaymentTokens, domain.PaymentTrade, domain.PaymentBarter:
	default:
		return domain.ErrInvalidPayment
	}
	if in.Payment == domain.PaymentBarter {
		if len(in.BarterOffer) < 1 || len(in.BarterOffer) > domain.MaxBarterLines {
			return domain.ErrInvalidBarterOffer
		}
		for _, line := range in.BarterOffer {
			if line.ItemName == "" || line.Quantity < 1 {
				return domain.ErrInvalidBarterOffer
			}
		}
	} else if len(in.BarterOffer) > 0 {
		return domain.ErrInvalidBarterOffer
	}
	return nil
}

// CreateRequest validates the terms against current world state, snapshots
// the price in effect, and persists a pending request. Duplicate submissions
// inside the dedup window are rejected before anything is persisted.
func (e *Engine) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.FulfillmentRequest, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	dedupKey := fmt.Sprintf("fulfill:%s:%s:%s", in.BuyerID, in.VendorCharacter, in.ItemName)
	ok, err := e.cache.SetIdempotency(ctx, dedupKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	req, err := e.buildRequest(ctx, in)
	if err != nil {
		// Release the dedup key so a corrected submission is not locked out.
		if cerr := e.cache.ClearIdempotency(ctx, dedupKey); cerr != nil {
			e.log.Warn("failed to release dedup key", zap.String("key", dedupKey), zap.Error(cerr))
		}
		return nil, err
	}
	return req, nil
}

func (e *Engine) buildRequest(ctx context.Context, in CreateRequestInput) (*domain.FulfillmentRequest, error) {
	buyer, err := e.holdings.GetCharacter(ctx, in.BuyerCharacter)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, in.BuyerCharacter)
	}
	if buyer.OwnerID != in.BuyerID {
		return nil, domain.ErrNotCharacterOwner
	}
	vendor, err := e.holdings.GetCharacter(ctx, in.VendorCharacter)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, in.VendorCharacter)
	}

	stock, err := e.holdings.FindStock(ctx, in.VendorCharacter, in.ItemName)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, &domain.InsufficientStockError{Owner: in.VendorCharacter, ItemName: in.ItemName, Requested: in.Quantity}
	}

	// Snapshot the price in effect now. A vendor buying from their own stall
	// pays the catalog reference price, not the listed one.
	unitPrice := stock.TokenPrice
	if vendor.OwnerID == in.BuyerID {
		item, err := e.holdings.GetItem(ctx, in.ItemName)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrItemNotInCatalog, in.ItemName)
		}
		unitPrice = item.BaseValue
	}

	now := e.now()
	req := &domain.FulfillmentRequest{
		ID:               uuid.NewString(),
		BuyerID:          in.BuyerID,
		BuyerCharacter:   in.BuyerCharacter,
		VendorCharacter:  in.VendorCharacter,
		ItemName:         in.ItemName,
		Quantity:         in.Quantity,
		Payment:          in.Payment,
		BarterOffer:      in.BarterOffer,
		QuotedTokenPrice: unitPrice,
		QuotedTradeTerms: stock.TradeTerms,
		Status:           domain.RequestStatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(e.ttl),
	}

	if err := e.Validate(ctx, req, false); err != nil {
		return nil, err
	}

	if err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		return e.ledger.CreateRequest(ctx, req)
	}); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	return req, nil
}

// GetRequest returns the request from the primary ledger, falling back to
// the legacy archive. Read-only; no migration happens here.
func (e *Engine) GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	req, _, err := e.loadRequest(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrRequestNotFound
	}
	return req, nil
}

// Cancel retires a pending request. Only the buyer who created it may cancel,
// and only while it is still pending.
func (e *Engine) Cancel(ctx context.Context, id, buyerID string) error {
	req, _, err := e.loadRequest(ctx, id, true)
	if err != nil {
		return err
	}
	if req == nil {
		return domain.ErrRequestNotFound
	}
	if req.BuyerID != buyerID {
		return domain.ErrNotRequestOwner
	}

	err = e.ledger.ExpirePending(ctx, id)
	if errors.Is(err, domain.ErrStatusConflict) {
		current, rerr := e.ledger.GetRequest(ctx, id)
		if rerr != nil {
			return rerr
		}
		return &domain.NotClaimableError{FulfillmentID: id, Reason: classifyClaimFailure(current, e.now())}
	}
	if err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}

	if e.legacy != nil {
		if derr := e.legacy.DeleteRequest(ctx, id); derr != nil {
			e.log.Warn("failed to drop cancelled legacy request", zap.String("fulfillment_id", id), zap.Error(derr))
		}
	}
	return nil
}

// loadRequest reads the primary ledger first and falls back to the legacy
// archive. With migrate set, an archive hit is copied into the primary
// ledger so the lifecycle transitions have a row to act on; a concurrent
// migrator winning the insert race is resolved by re-reading the primary.
func (e *Engine) loadRequest(ctx context.Context, id string, migrate bool) (*domain.FulfillmentRequest, bool, error) {
	req, err := e.ledger.GetRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if req != nil {
		return req, false, nil
	}
	if e.legacy == nil {
		return nil, false, nil
	}

	legacyReq, err := e.legacy.GetRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if legacyReq == nil {
		return nil, false, nil
	}

	if migrate {
		if err := e.ledger.CreateRequest(ctx, legacyReq); err != nil {
			migrated, rerr := e.ledger.GetRequest(ctx, id)
			if rerr == nil && migrated != nil {
				return migrated, true, nil
			}
			return nil, false, fmt.Errorf("migrate legacy request: %w", err)
		}
	}
	return legacyReq, true, nil
}
