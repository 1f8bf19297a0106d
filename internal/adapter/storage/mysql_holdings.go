package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
)

// MySQLHoldings is the stock-and-inventories partition: stall stock,
// personal inventories, characters and the item catalog. It lives in a
// separate database from the ledger and the two are never joined in one
// transaction.
//
// Expected schema:
//
//	CREATE TABLE stock (
//	    vendor_character VARCHAR(128) NOT NULL,
//	    item_name VARCHAR(128) NOT NULL,
//	    slot INT NOT NULL,
//	    quantity INT NOT NULL,
//	    token_price BIGINT NOT NULL,
//	    trade_terms VARCHAR(255) NOT NULL DEFAULT '',
//	    barter_accepted TINYINT(1) NOT NULL DEFAULT 0,
//	    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
//	    PRIMARY KEY (vendor_character, item_name, slot)
//	);
//	CREATE TABLE inventories (
//	    character_name VARCHAR(128) NOT NULL,
//	    item_name VARCHAR(128) NOT NULL,
//	    quantity INT NOT NULL,
//	    PRIMARY KEY (character_name, item_name)
//	);
//	CREATE TABLE characters (
//	    name VARCHAR(128) PRIMARY KEY,
//	    owner_id VARCHAR(64) NOT NULL,
//	    village VARCHAR(64) NOT NULL,
//	    roaming TINYINT(1) NOT NULL DEFAULT 0
//	);
//	CREATE TABLE items (
//	    name VARCHAR(128) PRIMARY KEY,
//	    base_value BIGINT NOT NULL
//	);
type MySQLHoldings struct {
	db     *sql.DB
	policy retry.Policy
}

func NewMySQLHoldings(db *sql.DB) *MySQLHoldings {
	return &MySQLHoldings{db: db}
}

func (h *MySQLHoldings) FindStock(ctx context.Context, vendorCharacter, itemName string) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := h.db.QueryRowContext(ctx, `
		SELECT vendor_character, item_name, slot, quantity, token_price, trade_terms, barter_accepted, updated_at
		FROM stock
		WHERE vendor_character = ? AND item_name = ? AND quantity > 0
		ORDER BY slot ASC LIMIT 1`,
		vendorCharacter, itemName,
	).Scan(&rec.VendorCharacter, &rec.ItemName, &rec.Slot, &rec.Quantity,
		&rec.TokenPrice, &rec.TradeTerms, &rec.BarterAccepted, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &rec, nil
}

// ApplyStockDelta is the conditional stock primitive: the floor is the
// update's WHERE clause, and the delete-at-zero happens inside the same short
// transaction so no zero-quantity row is ever observable.
func (h *MySQLHoldings) ApplyStockDelta(ctx context.Context, vendorCharacter, itemName string, slot, delta, requiredMin int) (int, error) {
	var remaining int
	err := retry.InTx(ctx, h.db, h.policy, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE stock SET quantity = quantity + ?
			WHERE vendor_character = ? AND item_name = ? AND slot = ? AND quantity >= ?`,
			delta, vendorCharacter, itemName, slot, requiredMin,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			var available int
			tx.QueryRowContext(ctx, `
				SELECT quantity FROM stock
				WHERE vendor_character = ? AND item_name = ? AND slot = ?`,
				vendorCharacter, itemName, slot,
			).Scan(&available)
			return &domain.InsufficientStockError{
				Owner:     vendorCharacter,
				ItemName:  itemName,
				Requested: -delta,
				Available: available,
			}
		}

		err = tx.QueryRowContext(ctx, `
			SELECT quantity FROM stock
			WHERE vendor_character = ? AND item_name = ? AND slot = ?`,
			vendorCharacter, itemName, slot,
		).Scan(&remaining)
		if err != nil {
			return fmt.Errorf("read stock: %w", err)
		}

		if remaining <= 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM stock
				WHERE vendor_character = ? AND item_name = ? AND slot = ?`,
				vendorCharacter, itemName, slot,
			); err != nil {
				return fmt.Errorf("free stock slot: %w", err)
			}
		}
		return nil
	})
	return remaining, err
}

func (h *MySQLHoldings) RestoreStock(ctx context.Context, rec *domain.StockRecord, qty int) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO stock (vendor_character, item_name, slot, quantity, token_price, trade_terms, barter_accepted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		rec.VendorCharacter, rec.ItemName, rec.Slot, qty, rec.TokenPrice, rec.TradeTerms, rec.BarterAccepted,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func (h *MySQLHoldings) ApplyInventoryDelta(ctx context.Context, character, itemName string, delta, requiredMin int) (int, error) {
	var remaining int
	err := retry.InTx(ctx, h.db, h.policy, func(tx *sql.Tx) error {
		if delta < 0 {
			result, err := tx.ExecContext(ctx, `
				UPDATE inventories SET quantity = quantity + ?
				WHERE character_name = ? AND item_name = ? AND quantity >= ?`,
				delta, character, itemName, requiredMin,
			)
			if err != nil {
				return fmt.Errorf("update inventory: %w", err)
			}
			rows, _ := result.RowsAffected()
			if rows == 0 {
				var available int
				tx.QueryRowContext(ctx, `
					SELECT quantity FROM inventories
					WHERE character_name = ? AND item_name = ?`,
					character, itemName,
				).Scan(&available)
				return &domain.InsufficientStockError{
					Owner:     character,
					ItemName:  itemName,
					Requested: -delta,
					Available: available,
				}
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO inventories (character_name, item_name, quantity)
				VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
				character, itemName, delta,
			); err != nil {
				return fmt.Errorf("credit inventory: %w", err)
			}
		}

		err := tx.QueryRowContext(ctx, `
			SELECT quantity FROM inventories
			WHERE character_name = ? AND item_name = ?`,
			character, itemName,
		).Scan(&remaining)
		if err != nil {
			return fmt.Errorf("read inventory: %w", err)
		}

		if remaining <= 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM inventories
				WHERE character_name = ? AND item_name = ?`,
				character, itemName,
			); err != nil {
				return fmt.Errorf("drop empty inventory line: %w", err)
			}
		}
		return nil
	})
	return remaining, err
}

func (h *MySQLHoldings) GetInventory(ctx context.Context, character, itemName string) (int, error) {
	var qty int
	err := h.db.QueryRowContext(ctx, `
		SELECT quantity FROM inventories
		WHERE character_name = ? AND item_name = ?`,
		character, itemName,
	).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query inventory: %w", err)
	}
	return qty, nil
}

func (h *MySQLHoldings) GetCharacter(ctx context.Context, name string) (*domain.Character, error) {
	var ch domain.Character
	err := h.db.QueryRowContext(ctx, `
		SELECT name, owner_id, village, roaming FROM characters WHERE name = ?`, name,
	).Scan(&ch.Name, &ch.OwnerID, &ch.Village, &ch.Roaming)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query character: %w", err)
	}
	return &ch, nil
}

func (h *MySQLHoldings) GetItem(ctx context.Context, name string) (*domain.Item, error) {
	var item domain.Item
	err := h.db.QueryRowContext(ctx, `
		SELECT name, base_value FROM items WHERE name = ?`, name,
	).Scan(&item.Name, &item.BaseValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &item, nil
}
