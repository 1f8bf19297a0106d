package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/retry"
)

// Mock LedgerRepository
type mockLedger struct {
	mu       sync.Mutex
	requests map[string]*domain.FulfillmentRequest
	balances map[string]int64

	// failure injection, checked before the mutation applies
	failBalance  func(partyID string, delta int64) error
	failComplete error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		requests: make(map[string]*domain.FulfillmentRequest),
		balances: make(map[string]int64),
	}
}

func (m *mockLedger) CreateRequest(ctx context.Context, req *domain.FulfillmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return fmt.Errorf("duplicate id %s", req.ID)
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *mockLedger) GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *mockLedger) ClaimProcessing(ctx context.Context, id string, now time.Time) (*domain.FulfillmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != domain.RequestStatusPending || req.Expired(now) {
		return nil, domain.ErrStatusConflict
	}
	req.Status = domain.RequestStatusProcessing
	req.Version++
	t := now
	req.ProcessedAt = &t
	cp := *req
	return &cp, nil
}

func (m *mockLedger) ReleaseToPending(ctx context.Context, id string) error {
	return m.transition(id, domain.RequestStatusProcessing, domain.RequestStatusPending)
}

func (m *mockLedger) CompleteRequest(ctx context.Context, id string, processedAt time.Time) error {
	m.mu.Lock()
	fail := m.failComplete
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	if err := m.transition(id, domain.RequestStatusProcessing, domain.RequestStatusCompleted); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := processedAt
	m.requests[id].ProcessedAt = &t
	return nil
}

func (m *mockLedger) ExpirePending(ctx context.Context, id string) error {
	return m.transition(id, domain.RequestStatusPending, domain.RequestStatusExpired)
}

func (m *mockLedger) transition(id string, from, to domain.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != from {
		return domain.ErrStatusConflict
	}
	req.Status = to
	req.Version++
	return nil
}

func (m *mockLedger) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, req := range m.requests {
		if (req.Status == domain.RequestStatusPending || req.Status == domain.RequestStatusProcessing) && req.Expired(now) {
			req.Status = domain.RequestStatusExpired
			req.Version++
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) ApplyBalanceDelta(ctx context.Context, partyID string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyBalanceLocked(partyID, delta)
}

func (m *mockLedger) applyBalanceLocked(partyID string, delta int64) (int64, error) {
	if m.failBalance != nil {
		if err := m.failBalance(partyID, delta); err != nil {
			return 0, err
		}
	}
	bal := m.balances[partyID]
	if delta < 0 && bal < -delta {
		return 0, &domain.InsufficientFundsError{PartyID: partyID, Required: -delta, Observed: bal}
	}
	bal += delta
	m.balances[partyID] = bal
	return bal, nil
}

func (m *mockLedger) TransferTokens(ctx context.Context, fromParty, toParty string, amount int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromBal, err := m.applyBalanceLocked(fromParty, -amount)
	if err != nil {
		return 0, 0, err
	}
	toBal, err := m.applyBalanceLocked(toParty, amount)
	if err != nil {
		// single lock scope, so the debit rolls back with us
		m.balances[fromParty] += amount
		return 0, 0, err
	}
	return fromBal, toBal, nil
}

func (m *mockLedger) GetBalance(ctx context.Context, partyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[partyID], nil
}

func (m *mockLedger) status(id string) domain.RequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ""
	}
	return req.Status
}

// Mock HoldingsRepository
type mockHoldings struct {
	mu         sync.Mutex
	stock      map[string]*domain.StockRecord // vendor|item|slot
	inventory  map[string]int                 // character|item
	characters map[string]*domain.Character
	items      map[string]*domain.Item

	failInventory func(character, item string, delta int) error
	failRestore   error
}

func newMockHoldings() *mockHoldings {
	return &mockHoldings{
		stock:      make(map[string]*domain.StockRecord),
		inventory:  make(map[string]int),
		characters: make(map[string]*domain.Character),
		items:      make(map[string]*domain.Item),
	}
}

func stockKey(vendor, item string, slot int) string {
	return fmt.Sprintf("%s|%s|%d", vendor, item, slot)
}

func invKey(character, item string) string {
	return character + "|" + item
}

func (m *mockHoldings) addStock(rec domain.StockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := rec
	m.stock[stockKey(rec.VendorCharacter, rec.ItemName, rec.Slot)] = &cp
}

func (m *mockHoldings) FindStock(ctx context.Context, vendor, item string) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.StockRecord
	for _, rec := range m.stock {
		if rec.VendorCharacter != vendor || rec.ItemName != item || rec.Quantity <= 0 {
			continue
		}
		if best == nil || rec.Slot < best.Slot {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *mockHoldings) ApplyStockDelta(ctx context.Context, vendor, item string, slot, delta, requiredMin int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stockKey(vendor, item, slot)
	rec, ok := m.stock[key]
	if !ok || rec.Quantity < requiredMin {
		available := 0
		if ok {
			available = rec.Quantity
		}
		return 0, &domain.InsufficientStockError{Owner: vendor, ItemName: item, Requested: -delta, Available: available}
	}
	rec.Quantity += delta
	remaining := rec.Quantity
	if remaining <= 0 {
		delete(m.stock, key)
	}
	return remaining, nil
}

func (m *mockHoldings) RestoreStock(ctx context.Context, rec *domain.StockRecord, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRestore != nil {
		return m.failRestore
	}
	key := stockKey(rec.VendorCharacter, rec.ItemName, rec.Slot)
	if existing, ok := m.stock[key]; ok {
		existing.Quantity += qty
		return nil
	}
	cp := *rec
	cp.Quantity = qty
	m.stock[key] = &cp
	return nil
}

func (m *mockHoldings) ApplyInventoryDelta(ctx context.Context, character, item string, delta, requiredMin int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInventory != nil {
		if err := m.failInventory(character, item, delta); err != nil {
			return 0, err
		}
	}
	key := invKey(character, item)
	qty := m.inventory[key]
	if delta < 0 && qty < requiredMin {
		return 0, &domain.InsufficientStockError{Owner: character, ItemName: item, Requested: -delta, Available: qty}
	}
	qty += delta
	if qty <= 0 {
		delete(m.inventory, key)
		return qty, nil
	}
	m.inventory[key] = qty
	return qty, nil
}

func (m *mockHoldings) GetInventory(ctx context.Context, character, item string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[invKey(character, item)], nil
}

func (m *mockHoldings) GetCharacter(ctx context.Context, name string) (*domain.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.characters[name]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (m *mockHoldings) GetItem(ctx context.Context, name string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[name]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *mockHoldings) stockQuantity(vendor, item string, slot int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[stockKey(vendor, item, slot)]
	if !ok {
		return 0
	}
	return rec.Quantity
}

func (m *mockHoldings) held(character, item string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[invKey(character, item)]
}

// Mock CacheRepository
type mockCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{keys: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCache) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Mock LegacyRequestStore
type mockLegacy struct {
	mu       sync.Mutex
	requests map[string]*domain.FulfillmentRequest
}

func newMockLegacy() *mockLegacy {
	return &mockLegacy{requests: make(map[string]*domain.FulfillmentRequest)}
}

func (m *mockLegacy) GetRequest(ctx context.Context, id string) (*domain.FulfillmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *mockLegacy) PutRequest(ctx context.Context, req *domain.FulfillmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *mockLegacy) DeleteRequest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *mockLegacy) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.requests[id]
	return ok
}

// Test fixture

const (
	buyerParty  = "party-buyer"
	vendorParty = "party-vendor"
	buyerChar   = "Mira"
	vendorChar  = "Sorrel"
	testItem    = "hearty elixir"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	ledger   *mockLedger
	holdings *mockHoldings
	cache    *mockCache
	legacy   *mockLegacy
	engine   *Engine
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ledger:   newMockLedger(),
		holdings: newMockHoldings(),
		cache:    newMockCache(),
		legacy:   newMockLegacy(),
	}
	env.engine = NewEngine(env.ledger, env.holdings, env.cache, Options{
		Legacy: env.legacy,
		Logger: zap.NewNop(),
		Policy: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, JitterMax: time.Millisecond},
		Now:    func() time.Time { return testNow },
	})

	env.holdings.characters[buyerChar] = &domain.Character{Name: buyerChar, OwnerID: buyerParty, Village: "eldmere"}
	env.holdings.characters[vendorChar] = &domain.Character{Name: vendorChar, OwnerID: vendorParty, Village: "eldmere"}
	env.holdings.items[testItem] = &domain.Item{Name: testItem, BaseValue: 35}
	env.holdings.addStock(domain.StockRecord{
		VendorCharacter: vendorChar,
		ItemName:        testItem,
		Slot:            1,
		Quantity:        10,
		TokenPrice:      40,
		TradeTerms:      "one sketch",
		BarterAccepted:  true,
	})
	env.ledger.balances[buyerParty] = 100
	return env
}

// pendingRequest seeds a pending token request directly in the ledger, the
// way the creation boundary would have persisted it.
func (env *testEnv) pendingRequest(id string, qty int, unitPrice int64) *domain.FulfillmentRequest {
	req := &domain.FulfillmentRequest{
		ID:               id,
		BuyerID:          buyerParty,
		BuyerCharacter:   buyerChar,
		VendorCharacter:  vendorChar,
		ItemName:         testItem,
		Quantity:         qty,
		Payment:          domain.PaymentTokens,
		QuotedTokenPrice: unitPrice,
		QuotedTradeTerms: "one sketch",
		Status:           domain.RequestStatusPending,
		CreatedAt:        testNow,
		ExpiresAt:        testNow.Add(domain.DefaultRequestTTL),
	}
	if err := env.ledger.CreateRequest(context.Background(), req); err != nil {
		panic(err)
	}
	return req
}
