package port

import (
	"context"

	"github.com/mossvale/stallworks/internal/core/domain"
)

// HoldingsRepository is the stock-and-inventories partition: per-vendor stall
// stock, per-character personal inventories, characters and the item catalog.
type HoldingsRepository interface {
	// FindStock returns the vendor's live stock line for the item (lowest
	// slot with remaining quantity), or nil when the stall has none.
	FindStock(ctx context.Context, vendorCharacter, itemName string) (*domain.StockRecord, error)

	// ApplyStockDelta decrements a stock line only if its quantity is at
	// least requiredMin, deleting the row in the same step when it reaches
	// zero. Returns the remaining quantity, or *domain.InsufficientStockError.
	ApplyStockDelta(ctx context.Context, vendorCharacter, itemName string, slot, delta, requiredMin int) (int, error)

	// RestoreStock re-adds qty units to a stock line, recreating the row
	// with its original terms if the decrement deleted it. Compensation path.
	RestoreStock(ctx context.Context, rec *domain.StockRecord, qty int) error

	// ApplyInventoryDelta mutates a character's personal inventory with the
	// same floor discipline: negative deltas require quantity >= requiredMin,
	// zero rows are deleted, positive deltas upsert. Returns the remaining
	// quantity.
	ApplyInventoryDelta(ctx context.Context, character, itemName string, delta, requiredMin int) (int, error)

	// GetInventory returns how many units of the item the character holds;
	// missing lines read as zero.
	GetInventory(ctx context.Context, character, itemName string) (int, error)

	// GetCharacter returns the character, or nil when unresolvable.
	GetCharacter(ctx context.Context, name string) (*domain.Character, error)

	// GetItem returns the catalog entry, or nil when unknown.
	GetItem(ctx context.Context, name string) (*domain.Item, error)
}
