package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRequestNotFound   = errors.New("fulfillment request not found")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrNotRequestOwner   = errors.New("request belongs to another buyer")
	ErrNotCharacterOwner = errors.New("character belongs to another party")
	ErrCharacterNotFound = errors.New("character not resolvable")
	ErrItemNotInCatalog  = errors.New("item not in catalog")
	ErrBarterNotAccepted = errors.New("stall does not accept barter")
	ErrTradeTermsChanged = errors.New("art-trade terms changed since the request was created")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidPayment    = errors.New("unknown payment method")
	ErrInvalidBarterOffer = errors.New("barter offer must contain one to three lines with positive quantities")

	// ErrStatusConflict is returned by conditional status transitions whose
	// precondition did not match. Callers classify it by re-reading status.
	ErrStatusConflict = errors.New("status precondition did not match")
)

// TradeIneligibleError reports that the location rule between buyer and
// vendor no longer holds.
type TradeIneligibleError struct {
	BuyerVillage  string
	VendorVillage string
}

func (e *TradeIneligibleError) Error() string {
	return fmt.Sprintf("buyer in %s cannot trade with vendor in %s", e.BuyerVillage, e.VendorVillage)
}

// ClaimFailReason is the specific sub-reason a request could not be claimed.
type ClaimFailReason string

const (
	ClaimFailNotFound   ClaimFailReason = "not_found"
	ClaimFailCompleted  ClaimFailReason = "already_completed"
	ClaimFailProcessing ClaimFailReason = "already_processing"
	ClaimFailExpired    ClaimFailReason = "expired"
)

// NotClaimableError reports that a request could not be moved to processing
// (or cancelled), with the sub-reason observed on re-read.
type NotClaimableError struct {
	FulfillmentID string
	Reason        ClaimFailReason
}

func (e *NotClaimableError) Error() string {
	return fmt.Sprintf("request %s not claimable: %s", e.FulfillmentID, e.Reason)
}

// InsufficientFundsError reports a balance decrement whose floor precondition
// failed. Observed is best-effort and non-authoritative.
type InsufficientFundsError struct {
	PartyID  string
	Required int64
	Observed int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: required %d, observed %d", e.PartyID, e.Required, e.Observed)
}

// InsufficientStockError reports a stock or inventory decrement whose floor
// precondition failed. Available is best-effort and non-authoritative.
type InsufficientStockError struct {
	Owner     string // vendor character for stall stock, character for inventory
	ItemName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s held by %s: requested %d, available %d", e.ItemName, e.Owner, e.Requested, e.Available)
}

// PriceDriftError reports that the live per-unit token price no longer equals
// the price snapshot captured at request creation.
type PriceDriftError struct {
	FulfillmentID string
	Quoted        int64
	Current       int64
}

func (e *PriceDriftError) Error() string {
	return fmt.Sprintf("price drifted on %s: quoted %d, current %d", e.FulfillmentID, e.Quoted, e.Current)
}

// ValidationError aggregates every business precondition that failed during
// re-validation. It unwraps to its issues so errors.Is/As see through it.
type ValidationError struct {
	FulfillmentID string
	Issues        []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Error()
	}
	return fmt.Sprintf("validation failed for %s: %s", e.FulfillmentID, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Issues }

// ResidualStateError records compensation steps that themselves failed,
// leaving state the saga cannot self-repair. It is logged for operator
// action, never surfaced to the buyer as their fault.
type ResidualStateError struct {
	FulfillmentID string
	Steps         []string
	Err           error
}

func (e *ResidualStateError) Error() string {
	return fmt.Sprintf("residual state on %s after failed compensation of [%s]: %v", e.FulfillmentID, strings.Join(e.Steps, ", "), e.Err)
}

func (e *ResidualStateError) Unwrap() error { return e.Err }
