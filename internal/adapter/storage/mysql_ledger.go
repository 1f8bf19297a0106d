package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
)

// MySQLLedger is the requests-and-balances partition.
//
// Expected schema:
//
//	CREATE TABLE requests (
//	    id VARCHAR(64) PRIMARY KEY,
//	    buyer_id VARCHAR(64) NOT NULL,
//	    buyer_character VARCHAR(128) NOT NULL,
//	    vendor_character VARCHAR(128) NOT NULL,
//	    item_name VARCHAR(128) NOT NULL,
//	    quantity INT NOT NULL,
//	    payment VARCHAR(16) NOT NULL,
//	    barter_offer JSON NULL,
//	    quoted_token_price BIGINT NOT NULL,
//	    quoted_trade_terms VARCHAR(255) NOT NULL DEFAULT '',
//	    status VARCHAR(16) NOT NULL,
//	    version INT NOT NULL DEFAULT 0,
//	    created_at DATETIME NOT NULL,
//	    expires_at DATETIME NOT NULL,
//	    processed_at DATETIME NULL
//	);
//	CREATE TABLE balances (
//	    party_id VARCHAR(64) PRIMARY KEY,
//	    tokens BIGINT NOT NULL DEFAULT 0
//	);
type MySQLLedger struct {
	db     *sql.DB
	policy retry.Policy
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

// execer is the slice of *sql.DB and *sql.Tx the balance primitive needs, so
// it can run standalone or under a ledger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *MySQLLedger) CreateRequest(ctx context.Context, req *domain.FulfillmentRequest) error {
	var barter []byte
	if len(req.BarterOffer) > 0 {
		b, err := json.Marshal(req.BarterOffer)
		if err != nil {
			return fmt.Errorf("encode barter offer: %w", err)
		}
		barter = b
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO requests (id, buyer_id, buyer_character, vendor_character, item_name,
			quantity, payment, barter_offer, quoted_token_price, quoted_trade_terms,
			status, version, created_at, expires_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		req.ID, req.BuyerID, req.BuyerCharacter, req.VendorCharacter, req.ItemName,
		req.Quantity, req.Payment, barter, req.QuotedTokenPrice, req.QuotedTradeTerms,
		req.Status, req.Version, req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (l *MySQLLedger) GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	return scanRequest(l.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, buyer_character, vendor_character, item_name,
			quantity, payment, barter_offer, quoted_token_price, quoted_trade_terms,
			status, version, created_at, expires_at, processed_at
		FROM requests WHERE id = ?`, id))
}

func scanRequest(row *sql.Row) (*domain.FulfillmentRequest, error) {
	var req domain.FulfillmentRequest
	var barter []byte
	var processedAt sql.NullTime

	err := row.Scan(&req.ID, &req.BuyerID, &req.BuyerCharacter, &req.VendorCharacter,
		&req.ItemName, &req.Quantity, &req.Payment, &barter, &req.QuotedTokenPrice,
		&req.QuotedTradeTerms, &req.Status, &req.Version, &req.CreatedAt,
		&req.ExpiresAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}

	if len(barter) > 0 {
		if err := json.Unmarshal(barter, &req.BarterOffer); err != nil {
			return nil, fmt.Errorf("decode barter offer: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		req.ProcessedAt = &t
	}
	return &req, nil
}

// ClaimProcessing is the single serialization point of the engine: the
// precondition status='pending' AND not expired guarantees at most one caller
// sees an affected row for a given request.
func (l *MySQLLedger) ClaimProcessing(ctx context.Context, id string, now time.Time) (*domain.FulfillmentRequest, error) {
	result, err := l.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1, processed_at = ?
		WHERE id = ? AND status = ? AND expires_at > ?`,
		domain.RequestStatusProcessing, now, id, domain.RequestStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, domain.ErrStatusConflict
	}
	req, err := l.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrRequestNotFound
	}
	return req, nil
}

func (l *MySQLLedger) ReleaseToPending(ctx context.Context, id string) error {
	return l.transition(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1, processed_at = NULL
		WHERE id = ? AND status = ?`,
		domain.RequestStatusPending, id, domain.RequestStatusProcessing)
}

func (l *MySQLLedger) CompleteRequest(ctx context.Context, id string, processedAt time.Time) error {
	return l.transition(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1, processed_at = ?
		WHERE id = ? AND status = ?`,
		domain.RequestStatusCompleted, processedAt, id, domain.RequestStatusProcessing)
}

func (l *MySQLLedger) ExpirePending(ctx context.Context, id string) error {
	return l.transition(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1
		WHERE id = ? AND status = ?`,
		domain.RequestStatusExpired, id, domain.RequestStatusPending)
}

func (l *MySQLLedger) transition(ctx context.Context, query string, args ...any) error {
	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition request: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (l *MySQLLedger) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1
		WHERE status IN (?, ?) AND expires_at <= ?`,
		domain.RequestStatusExpired, domain.RequestStatusPending, domain.RequestStatusProcessing, now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire overdue requests: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (l *MySQLLedger) ApplyBalanceDelta(ctx context.Context, partyID string, delta int64) (int64, error) {
	var balance int64
	err := retry.InTx(ctx, l.db, l.policy, func(tx *sql.Tx) error {
		var err error
		balance, err = applyBalanceDelta(ctx, tx, partyID, delta)
		return err
	})
	return balance, err
}

func (l *MySQLLedger) TransferTokens(ctx context.Context, fromParty, toParty string, amount int64) (int64, int64, error) {
	var fromBal, toBal int64
	err := retry.InTx(ctx, l.db, l.policy, func(tx *sql.Tx) error {
		var err error
		if fromBal, err = applyBalanceDelta(ctx, tx, fromParty, -amount); err != nil {
			return err
		}
		toBal, err = applyBalanceDelta(ctx, tx, toParty, amount)
		return err
	})
	return fromBal, toBal, err
}

// applyBalanceDelta encodes the balance floor directly in the update
// precondition: no read-then-write path exists for a debit.
func applyBalanceDelta(ctx context.Context, q execer, partyID string, delta int64) (int64, error) {
	if delta < 0 {
		result, err := q.ExecContext(ctx, `
			UPDATE balances SET tokens = tokens - ?
			WHERE party_id = ? AND tokens >= ?`,
			-delta, partyID, -delta,
		)
		if err != nil {
			return 0, fmt.Errorf("debit balance: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			// Best-effort observed balance for diagnostics only.
			observed, _ := readBalance(ctx, q, partyID)
			return 0, &domain.InsufficientFundsError{
				PartyID:  partyID,
				Required: -delta,
				Observed: observed,
			}
		}
	} else {
		_, err := q.ExecContext(ctx, `
			INSERT INTO balances (party_id, tokens) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE tokens = tokens + VALUES(tokens)`,
			partyID, delta,
		)
		if err != nil {
			return 0, fmt.Errorf("credit balance: %w", err)
		}
	}
	return readBalance(ctx, q, partyID)
}

func readBalance(ctx context.Context, q execer, partyID string) (int64, error) {
	var tokens int64
	err := q.QueryRowContext(ctx, `SELECT tokens FROM balances WHERE party_id = ?`, partyID).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return tokens, nil
}

func (l *MySQLLedger) GetBalance(ctx context.Context, partyID string) (int64, error) {
	return readBalance(ctx, l.db, partyID)
}
