package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/mossvale/stallworks/internal/core/domain"
)

func getLedgerDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("LEDGER_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stallworks_ledger?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id VARCHAR(64) PRIMARY KEY,
			buyer_id VARCHAR(64) NOT NULL,
			buyer_character VARCHAR(128) NOT NULL,
			vendor_character VARCHAR(128) NOT NULL,
			item_name VARCHAR(128) NOT NULL,
			quantity INT NOT NULL,
			payment VARCHAR(16) NOT NULL,
			barter_offer JSON NULL,
			quoted_token_price BIGINT NOT NULL,
			quoted_trade_terms VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL,
			version INT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			processed_at DATETIME NULL
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			party_id VARCHAR(64) PRIMARY KEY,
			tokens BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	return db
}

func seedLedgerRequest(t *testing.T, ledger *MySQLLedger, status domain.RequestStatus, expiresAt time.Time) string {
	t.Helper()
	ctx := context.Background()
	req := &domain.FulfillmentRequest{
		ID:               "test-req-" + uuid.NewString(),
		BuyerID:          "test-buyer",
		BuyerCharacter:   "Wren",
		VendorCharacter:  "Tamsin",
		ItemName:         "iron kettle",
		Quantity:         1,
		Payment:          domain.PaymentTokens,
		QuotedTokenPrice: 12,
		Status:           status,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		ExpiresAt:        expiresAt,
	}
	if err := ledger.CreateRequest(ctx, req); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	t.Cleanup(func() {
		ledger.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, req.ID)
	})
	return req.ID
}

func TestMySQLLedger_RequestRoundTrip(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)

	req := &domain.FulfillmentRequest{
		ID:               "test-req-" + uuid.NewString(),
		BuyerID:          "test-buyer",
		BuyerCharacter:   "Wren",
		VendorCharacter:  "Tamsin",
		ItemName:         "iron kettle",
		Quantity:         2,
		Payment:          domain.PaymentBarter,
		BarterOffer:      []domain.BarterLine{{ItemName: "acorn", Quantity: 2}},
		QuotedTokenPrice: 12,
		QuotedTradeTerms: "one song",
		Status:           domain.RequestStatusPending,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		ExpiresAt:        time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	if err := ledger.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, req.ID)

	got, err := ledger.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if got.Status != domain.RequestStatusPending || got.Quantity != 2 || got.Payment != domain.PaymentBarter {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.BarterOffer) != 1 || got.BarterOffer[0].ItemName != "acorn" {
		t.Errorf("barter offer mismatch: %+v", got.BarterOffer)
	}
	if got.ProcessedAt != nil {
		t.Errorf("fresh request should have no processed_at, got %v", got.ProcessedAt)
	}
}

func TestMySQLLedger_GetMissing(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	got, err := NewMySQLLedger(db).GetRequest(context.Background(), "no-such-request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestMySQLLedger_ClaimProcessing(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	id := seedLedgerRequest(t, ledger, domain.RequestStatusPending, time.Now().UTC().Add(time.Hour).Truncate(time.Second))

	claimed, err := ledger.ClaimProcessing(ctx, id, time.Now().UTC())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != domain.RequestStatusProcessing {
		t.Errorf("expected processing, got %s", claimed.Status)
	}
	if claimed.Version != 1 {
		t.Errorf("expected version 1, got %d", claimed.Version)
	}

	// a second claim finds no pending row
	if _, err := ledger.ClaimProcessing(ctx, id, time.Now().UTC()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got: %v", err)
	}
}

func TestMySQLLedger_ClaimProcessing_Expired(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	id := seedLedgerRequest(t, ledger, domain.RequestStatusPending, time.Now().UTC().Add(-time.Hour).Truncate(time.Second))

	if _, err := ledger.ClaimProcessing(ctx, id, time.Now().UTC()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict for overdue request, got: %v", err)
	}
}

func TestMySQLLedger_Lifecycle(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	id := seedLedgerRequest(t, ledger, domain.RequestStatusPending, time.Now().UTC().Add(time.Hour).Truncate(time.Second))

	if _, err := ledger.ClaimProcessing(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.ReleaseToPending(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := ledger.ClaimProcessing(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if err := ledger.CompleteRequest(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// completion is terminal
	if err := ledger.CompleteRequest(ctx, id, time.Now().UTC()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on double complete, got: %v", err)
	}

	got, err := ledger.GetRequest(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.RequestStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Error("expected processed_at to be set")
	}
}

func TestMySQLLedger_ExpireOverdue(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	stale := seedLedgerRequest(t, ledger, domain.RequestStatusPending, time.Now().UTC().Add(-time.Hour).Truncate(time.Second))
	fresh := seedLedgerRequest(t, ledger, domain.RequestStatusPending, time.Now().UTC().Add(time.Hour).Truncate(time.Second))

	n, err := ledger.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire overdue: %v", err)
	}
	if n < 1 {
		t.Errorf("expected at least the seeded stale row, got %d", n)
	}

	got, _ := ledger.GetRequest(ctx, stale)
	if got.Status != domain.RequestStatusExpired {
		t.Errorf("stale request should be expired, got %s", got.Status)
	}
	got, _ = ledger.GetRequest(ctx, fresh)
	if got.Status != domain.RequestStatusPending {
		t.Errorf("fresh request should stay pending, got %s", got.Status)
	}
}

func TestMySQLLedger_Balances(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	party := "test-party-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM balances WHERE party_id = ?`, party)

	// crediting an unknown party creates the row
	bal, err := ledger.ApplyBalanceDelta(ctx, party, 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal != 100 {
		t.Errorf("expected 100, got %d", bal)
	}

	bal, err = ledger.ApplyBalanceDelta(ctx, party, -30)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal != 70 {
		t.Errorf("expected 70, got %d", bal)
	}

	// a debit past the floor reports the observed balance and changes nothing
	_, err = ledger.ApplyBalanceDelta(ctx, party, -200)
	var funds *domain.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got: %v", err)
	}
	if funds.Required != 200 || funds.Observed != 70 {
		t.Errorf("expected required=200 observed=70, got %+v", funds)
	}
	if bal, _ := ledger.GetBalance(ctx, party); bal != 70 {
		t.Errorf("failed debit must not change the balance, got %d", bal)
	}
}

func TestMySQLLedger_TransferTokens(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	from := "test-party-" + uuid.NewString()
	to := "test-party-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM balances WHERE party_id IN (?, ?)`, from, to)

	if _, err := ledger.ApplyBalanceDelta(ctx, from, 50); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fromBal, toBal, err := ledger.TransferTokens(ctx, from, to, 20)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if fromBal != 30 || toBal != 20 {
		t.Errorf("expected 30/20, got %d/%d", fromBal, toBal)
	}

	// an uncovered transfer moves nothing
	_, _, err = ledger.TransferTokens(ctx, from, to, 100)
	var funds *domain.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got: %v", err)
	}
	if bal, _ := ledger.GetBalance(ctx, from); bal != 30 {
		t.Errorf("debit side changed on failed transfer: %d", bal)
	}
	if bal, _ := ledger.GetBalance(ctx, to); bal != 20 {
		t.Errorf("credit side changed on failed transfer: %d", bal)
	}
}
