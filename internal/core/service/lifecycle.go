package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
)

// MarkProcessing is the sole entry point for the pending → processing
// transition. The transition is a single conditional update, so for any
// number of concurrent callers exactly one receives the claimed request;
// the rest get a NotClaimableError whose sub-reason comes from re-reading
// the current status.
func (e *Engine) MarkProcessing(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	var claimed *domain.FulfillmentRequest
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		req, err := e.ledger.ClaimProcessing(ctx, id, e.now())
		claimed = req
		return err
	})
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, domain.ErrStatusConflict) {
		return nil, fmt.Errorf("claim request %s: %w", id, err)
	}

	current, rerr := e.ledger.GetRequest(ctx, id)
	if rerr != nil {
		return nil, rerr
	}
	return nil, &domain.NotClaimableError{FulfillmentID: id, Reason: classifyClaimFailure(current, e.now())}
}

// classifyClaimFailure names the specific reason a conditional transition
// found no matching row. The re-read is best-effort: if the status moved
// again in between, the reason reflects what the re-read saw.
func classifyClaimFailure(req *domain.FulfillmentRequest, now time.Time) domain.ClaimFailReason {
	switch {
	case req == nil:
		return domain.ClaimFailNotFound
	case req.Status == domain.RequestStatusCompleted:
		return domain.ClaimFailCompleted
	case req.Status == domain.RequestStatusExpired || req.Expired(now):
		return domain.ClaimFailExpired
	default:
		return domain.ClaimFailProcessing
	}
}
