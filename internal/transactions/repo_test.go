package transactions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/pkg/db"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
)

func TestCreateEnforcesUniqueReference(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)

	first := &models.Transaction{
		OrderID:     uuid.New(),
		ReferenceID: "cs_test_dup",
		Amount:      decimal.NewFromInt(30),
	}
	if _, err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := &models.Transaction{
		OrderID:     uuid.New(),
		ReferenceID: "cs_test_dup",
		Amount:      decimal.NewFromInt(30),
	}
	_, err := repo.Create(ctx, dup)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkCompletedIsOneWay(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)

	txn := &models.Transaction{
		OrderID:     uuid.New(),
		ReferenceID: "cs_test_complete",
		Amount:      decimal.NewFromInt(45),
	}
	if _, err := repo.Create(ctx, txn); err != nil {
		t.Fatalf("create: %v", err)
	}

	payload := json.RawMessage(`{"payment_status":"paid"}`)
	affected, err := repo.MarkCompleted(ctx, "cs_test_complete", payload)
	if err != nil || affected != 1 {
		t.Fatalf("mark completed: affected=%d err=%v", affected, err)
	}

	// A duplicate delivery must find nothing left to complete.
	affected, err = repo.MarkCompleted(ctx, "cs_test_complete", payload)
	if err != nil {
		t.Fatalf("second mark completed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows on duplicate completion, got %d", affected)
	}

	// And a completed transaction can no longer fail.
	affected, err = repo.MarkFailed(ctx, "cs_test_complete", nil)
	if err != nil || affected != 0 {
		t.Fatalf("mark failed after completion: affected=%d err=%v", affected, err)
	}

	got, err := repo.FindByReferenceID(ctx, "cs_test_complete")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != enums.TransactionStatusCompleted {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if string(got.RawResponse) != string(payload) {
		t.Fatalf("unexpected raw response %s", got.RawResponse)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:transactions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Transaction{}); err != nil {
		t.Fatalf("migrate transactions: %v", err)
	}
	return conn
}
