package service

import (
	"context"
	"fmt"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// Validate re-checks, against current world state, every condition that was
// true when the request was created. All business failures are collected
// into one ValidationError; infrastructure failures propagate directly.
//
// skipProcessingCheck is set by the saga right after its own pending →
// processing transition, so the re-validation does not fail on seeing the
// status it just wrote.
func (e *Engine) Validate(ctx context.Context, req *domain.FulfillmentRequest, skipProcessingCheck bool) error {
	now := e.now()
	var issues []error

	switch req.Status {
	case domain.RequestStatusPending:
	case domain.RequestStatusProcessing:
		if !skipProcessingCheck {
			issues = append(issues, &domain.NotClaimableError{FulfillmentID: req.ID, Reason: domain.ClaimFailProcessing})
		}
	case domain.RequestStatusCompleted:
		issues = append(issues, &domain.NotClaimableError{FulfillmentID: req.ID, Reason: domain.ClaimFailCompleted})
	case domain.RequestStatusExpired:
		issues = append(issues, &domain.NotClaimableError{FulfillmentID: req.ID, Reason: domain.ClaimFailExpired})
	}
	if req.Status != domain.RequestStatusExpired && req.Expired(now) {
		issues = append(issues, &domain.NotClaimableError{FulfillmentID: req.ID, Reason: domain.ClaimFailExpired})
	}

	buyer, err := e.holdings.GetCharacter(ctx, req.BuyerCharacter)
	if err != nil {
		return err
	}
	if buyer == nil {
		issues = append(issues, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, req.BuyerCharacter))
	}
	vendor, err := e.holdings.GetCharacter(ctx, req.VendorCharacter)
	if err != nil {
		return err
	}
	if vendor == nil {
		issues = append(issues, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, req.VendorCharacter))
	}

	if buyer != nil && vendor != nil && !domain.TradeEligible(buyer, vendor) {
		issues = append(issues, &domain.TradeIneligibleError{BuyerVillage: buyer.Village, VendorVillage: vendor.Village})
	}

	stock, err := e.holdings.FindStock(ctx, req.VendorCharacter, req.ItemName)
	if err != nil {
		return err
	}
	if stock == nil || stock.Quantity < req.Quantity {
		available := 0
		if stock != nil {
			available = stock.Quantity
		}
		issues = append(issues, &domain.InsufficientStockError{
			Owner:     req.VendorCharacter,
			ItemName:  req.ItemName,
			Requested: req.Quantity,
			Available: available,
		})
	}

	selfPurchase := vendor != nil && vendor.OwnerID == req.BuyerID

	switch req.Payment {
	case domain.PaymentTokens:
		// The live price must still equal the snapshot; the buyer's balance
		// is checked against the originally quoted total, never a re-derived
		// live price, so a vendor cannot raise prices mid-flight.
		if current, ok, cerr := e.currentUnitPrice(ctx, req, stock, selfPurchase); cerr != nil {
			return cerr
		} else if ok && current != req.QuotedTokenPrice {
			issues = append(issues, &domain.PriceDriftError{FulfillmentID: req.ID, Quoted: req.QuotedTokenPrice, Current: current})
		}

		balance, berr := e.ledger.GetBalance(ctx, req.BuyerID)
		if berr != nil {
			return berr
		}
		if total := req.QuotedTokenTotal(); balance < total {
			issues = append(issues, &domain.InsufficientFundsError{PartyID: req.BuyerID, Required: total, Observed: balance})
		}

	case domain.PaymentTrade:
		if stock != nil && stock.TradeTerms != req.QuotedTradeTerms {
			issues = append(issues, fmt.Errorf("%w: quoted %q, current %q", domain.ErrTradeTermsChanged, req.QuotedTradeTerms, stock.TradeTerms))
		}

	case domain.PaymentBarter:
		if stock != nil && !stock.BarterAccepted {
			issues = append(issues, domain.ErrBarterNotAccepted)
		}
		for _, line := range req.BarterOffer {
			held, herr := e.holdings.GetInventory(ctx, req.BuyerCharacter, line.ItemName)
			if herr != nil {
				return herr
			}
			if held < line.Quantity {
				issues = append(issues, &domain.InsufficientStockError{
					Owner:     req.BuyerCharacter,
					ItemName:  line.ItemName,
					Requested: line.Quantity,
					Available: held,
				})
			}
		}
	}

	if len(issues) > 0 {
		return &domain.ValidationError{FulfillmentID: req.ID, Issues: issues}
	}
	return nil
}

// currentUnitPrice returns the live per-unit price to compare against the
// snapshot: the stall's listed price, or the catalog reference price for a
// self-purchase. ok is false when no live price is resolvable (stock gone,
// catalog entry gone); those cases already raised their own issue.
func (e *Engine) currentUnitPrice(ctx context.Context, req *domain.FulfillmentRequest, stock *domain.StockRecord, selfPurchase bool) (int64, bool, error) {
	if selfPurchase {
		item, err := e.holdings.GetItem(ctx, req.ItemName)
		if err != nil {
			return 0, false, err
		}
		if item == nil {
			return 0, false, nil
		}
		return item.BaseValue, true, nil
	}
	if stock == nil {
		return 0, false, nil
	}
	return stock.TokenPrice, true, nil
}
