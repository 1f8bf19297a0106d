package port

import (
	"context"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// LegacyRequestStore is the request archive left behind by the previous
// deployment generation. It is read-through only: the saga migrates a hit
// into the primary ledger before claiming it, and deletes the archive row
// after successful completion. Absence of a row is never an error.
type LegacyRequestStore interface {
	GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error)
	PutRequest(ctx context.Context, req *domain.FulfillmentRequest) error
	DeleteRequest(ctx context.Context, id string) error
}
