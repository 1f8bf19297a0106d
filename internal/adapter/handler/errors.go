package handler

import (
	"errors"
	"net/http"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// errorPayload maps an engine error to an HTTP status, a stable error kind
// for programmatic clients, and the structured detail fields the spec
// requires for rendering an actionable message.
func errorPayload(err error) (int, string, map[string]any) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		issues := make([]map[string]any, 0, len(validation.Issues))
		for _, issue := range validation.Issues {
			_, kind, details := classifyIssue(issue)
			entry := map[string]any{"error_kind": kind, "message": issue.Error()}
			if len(details) > 0 {
				entry["details"] = details
			}
			issues = append(issues, entry)
		}
		return http.StatusUnprocessableEntity, "validation_failed", map[string]any{
			"fulfillment_id": validation.FulfillmentID,
			"issues":         issues,
		}
	}
	return classifyIssue(err)
}

func classifyIssue(err error) (int, string, map[string]any) {
	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		return http.StatusConflict, "insufficient_funds", map[string]any{
			"party_id": funds.PartyID,
			"required": funds.Required,
			"observed": funds.Observed,
		}
	}
	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		return http.StatusConflict, "insufficient_stock", map[string]any{
			"owner":     stock.Owner,
			"item_name": stock.ItemName,
			"requested": stock.Requested,
			"available": stock.Available,
		}
	}
	var drift *domain.PriceDriftError
	if errors.As(err, &drift) {
		return http.StatusConflict, "price_drifted", map[string]any{
			"fulfillment_id": drift.FulfillmentID,
			"quoted":         drift.Quoted,
			"current":        drift.Current,
		}
	}
	var claim *domain.NotClaimableError
	if errors.As(err, &claim) {
		return http.StatusConflict, "request_not_claimable", map[string]any{
			"fulfillment_id": claim.FulfillmentID,
			"reason":         string(claim.Reason),
		}
	}
	var ineligible *domain.TradeIneligibleError
	if errors.As(err, &ineligible) {
		return http.StatusConflict, "trade_ineligible", map[string]any{
			"buyer_village":  ineligible.BuyerVillage,
			"vendor_village": ineligible.VendorVillage,
		}
	}

	switch {
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request", nil
	case errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, domain.ErrNotRequestOwner), errors.Is(err, domain.ErrNotCharacterOwner):
		return http.StatusForbidden, "not_owner", nil
	case errors.Is(err, domain.ErrBarterNotAccepted),
		errors.Is(err, domain.ErrTradeTermsChanged):
		return http.StatusConflict, "terms_changed", nil
	case errors.Is(err, domain.ErrCharacterNotFound),
		errors.Is(err, domain.ErrItemNotInCatalog):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrInvalidBarterOffer):
		return http.StatusBadRequest, "invalid_request", nil
	}
	return http.StatusInternalServerError, "internal", nil
}
