package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// SQLiteLegacy reads the request archive written by the previous deployment
// generation. The saga migrates hits into the primary ledger before claiming
// them and deletes the archive row once the request completes, so the file
// drains over time.
type SQLiteLegacy struct {
	db *sql.DB
}

func OpenSQLiteLegacy(path string) (*SQLiteLegacy, error) {
	if path == "" {
		return nil, fmt.Errorf("empty legacy db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open legacy db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS legacy_requests (
			id TEXT PRIMARY KEY,
			buyer_id TEXT NOT NULL,
			buyer_character TEXT NOT NULL,
			vendor_character TEXT NOT NULL,
			item_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			payment TEXT NOT NULL,
			barter_offer TEXT,
			quoted_token_price INTEGER NOT NULL,
			quoted_trade_terms TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap legacy schema: %w", err)
	}
	return &SQLiteLegacy{db: db}, nil
}

func (s *SQLiteLegacy) Close() error { return s.db.Close() }

func (s *SQLiteLegacy) GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	var req domain.FulfillmentRequest
	var barter sql.NullString
	var createdAt, expiresAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, buyer_character, vendor_character, item_name,
			quantity, payment, barter_offer, quoted_token_price, quoted_trade_terms,
			status, version, created_at, expires_at
		FROM legacy_requests WHERE id = ?`, id,
	).Scan(&req.ID, &req.BuyerID, &req.BuyerCharacter, &req.VendorCharacter,
		&req.ItemName, &req.Quantity, &req.Payment, &barter, &req.QuotedTokenPrice,
		&req.QuotedTradeTerms, &req.Status, &req.Version, &createdAt, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query legacy request: %w", err)
	}

	if barter.Valid && barter.String != "" {
		if err := json.Unmarshal([]byte(barter.String), &req.BarterOffer); err != nil {
			return nil, fmt.Errorf("decode legacy barter offer: %w", err)
		}
	}
	req.CreatedAt = time.Unix(createdAt, 0).UTC()
	req.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &req, nil
}

func (s *SQLiteLegacy) PutRequest(ctx context.Context, req *domain.FulfillmentRequest) error {
	var barter any
	if len(req.BarterOffer) > 0 {
		b, err := json.Marshal(req.BarterOffer)
		if err != nil {
			return fmt.Errorf("encode barter offer: %w", err)
		}
		barter = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO legacy_requests (id, buyer_id, buyer_character, vendor_character,
			item_name, quantity, payment, barter_offer, quoted_token_price, quoted_trade_terms,
			status, version, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.BuyerID, req.BuyerCharacter, req.VendorCharacter, req.ItemName,
		req.Quantity, req.Payment, barter, req.QuotedTokenPrice, req.QuotedTradeTerms,
		req.Status, req.Version, req.CreatedAt.Unix(), req.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert legacy request: %w", err)
	}
	return nil
}

func (s *SQLiteLegacy) DeleteRequest(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM legacy_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete legacy request: %w", err)
	}
	return nil
}
