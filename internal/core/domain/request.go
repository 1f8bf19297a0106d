package domain

import "time"

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusExpired    RequestStatus = "expired"
)

type PaymentMethod string

const (
	PaymentTokens PaymentMethod = "tokens"
	PaymentTrade  PaymentMethod = "trade"
	PaymentBarter PaymentMethod = "barter"
)

// DefaultRequestTTL is how long a request stays claimable after creation.
const DefaultRequestTTL = 7 * 24 * time.Hour

// MaxBarterLines caps how many distinct items a barter offer may contain.
const MaxBarterLines = 3

// BarterLine is one item the buyer offers in exchange.
type BarterLine struct {
	ItemName string
	Quantity int
}

// FulfillmentRequest is the unit of work for the saga. The price fields are a
// snapshot captured at creation time and are never re-read live; drift between
// the snapshot and the stall's current terms fails validation.
type FulfillmentRequest struct {
	ID              string
	BuyerID         string
	BuyerCharacter  string
	VendorCharacter string
	ItemName        string
	Quantity        int
	Payment         PaymentMethod
	BarterOffer     []BarterLine

	QuotedTokenPrice int64  // per unit
	QuotedTradeTerms string // informal art-trade terms, freeform

	Status      RequestStatus
	Version     int // bumped on every status transition
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ProcessedAt *time.Time
}

// Expired reports whether the request's TTL has passed.
func (r *FulfillmentRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// QuotedTokenTotal is the total quoted token cost for the full quantity.
func (r *FulfillmentRequest) QuotedTokenTotal() int64 {
	return r.QuotedTokenPrice * int64(r.Quantity)
}
