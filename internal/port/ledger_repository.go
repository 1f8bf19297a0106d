package port

import (
	"context"
	"time"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// LedgerRepository is the requests-and-balances partition. All status
// transitions and balance mutations are single conditional updates; the
// partition is transactional within itself but never jointly with holdings.
type LedgerRepository interface {
	// CreateRequest persists a new pending request.
	CreateRequest(ctx context.Context, req *domain.FulfillmentRequest) error

	// GetRequest returns the request, or nil when absent.
	GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error)

	// ClaimProcessing conditionally moves pending → processing, only while
	// the TTL has not passed, and returns the claimed request. Returns
	// domain.ErrStatusConflict when the precondition did not match.
	ClaimProcessing(ctx context.Context, id string, now time.Time) (*domain.FulfillmentRequest, error)

	// ReleaseToPending conditionally moves processing → pending.
	ReleaseToPending(ctx context.Context, id string) error

	// CompleteRequest conditionally moves processing → completed and sets
	// the processed timestamp.
	CompleteRequest(ctx context.Context, id string, processedAt time.Time) error

	// ExpirePending conditionally moves a single pending request to expired,
	// regardless of its TTL. Used by cancellation.
	ExpirePending(ctx context.Context, id string) error

	// ExpireOverdue moves every pending or processing request whose TTL has
	// passed to expired, returning how many rows moved. Idempotent.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// ApplyBalanceDelta mutates a party's token balance with the floor
	// encoded in the update precondition: a negative delta decrements only
	// if the balance covers it, a positive delta upsert-increments. Returns
	// the resulting balance, or *domain.InsufficientFundsError.
	ApplyBalanceDelta(ctx context.Context, partyID string, delta int64) (int64, error)

	// TransferTokens debits one party and credits another inside a single
	// ledger transaction. Returns the resulting balances in call order.
	TransferTokens(ctx context.Context, fromParty, toParty string, amount int64) (int64, int64, error)

	// GetBalance returns a party's balance; missing records read as zero.
	GetBalance(ctx context.Context, partyID string) (int64, error)
}
