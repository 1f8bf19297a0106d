package domain

import "time"

// StockRecord is one sellable line inside a vendor's stall, keyed by
// vendor character + item + slot. Quantity never goes below zero; the row is
// removed in the same step that drives it to zero.
type StockRecord struct {
	VendorCharacter string
	ItemName        string
	Slot            int
	Quantity        int
	TokenPrice      int64
	TradeTerms      string
	BarterAccepted  bool
	UpdatedAt       time.Time
}

// BalanceRecord is a party's token balance. Created lazily on first credit.
type BalanceRecord struct {
	PartyID string
	Tokens  int64
}

// InventoryLine is a quantity of a named item in a character's personal
// holdings, a separate partition from stall stock.
type InventoryLine struct {
	Character string
	ItemName  string
	Quantity  int
}

// Character is a playable character inside the world. OwnerID is the party
// that controls it; Village drives the trade-eligibility rule.
type Character struct {
	Name    string
	OwnerID string
	Village string
	Roaming bool // a roaming vendor may sell across villages
}

// Item is a catalog entry. BaseValue is the reference price used when a
// vendor buys from their own stall.
type Item struct {
	Name      string
	BaseValue int64
}

// TradeEligible reports whether buyer and vendor may trade under the
// location rule: same village, or the vendor is roaming.
func TradeEligible(buyer, vendor *Character) bool {
	if buyer == nil || vendor == nil {
		return false
	}
	return vendor.Roaming || buyer.Village == vendor.Village
}
