package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
)

func TestReserveDecrementsAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()

	productA := seedProduct(t, db, 5, 5)
	productB := seedProduct(t, db, 2, 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []ReserveItem{
			{ProductID: productA, Quantity: 3},
			{ProductID: productB, Quantity: 2},
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := loadProduct(t, db, productA); got.QuantityAvailable != 2 || got.QuantityOnHand != 5 {
		t.Fatalf("unexpected product a counters: %+v", got)
	}
	if got := loadProduct(t, db, productB); got.QuantityAvailable != 0 || got.QuantityOnHand != 2 {
		t.Fatalf("unexpected product b counters: %+v", got)
	}
}

func TestReserveInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()

	productA := seedProduct(t, db, 5, 5)
	productB := seedProduct(t, db, 1, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []ReserveItem{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 4},
		})
	})
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}
	detail, ok := typed.Details().(ShortageDetail)
	if !ok {
		t.Fatalf("expected shortage detail, got %T", typed.Details())
	}
	if detail.ProductID != productB || detail.Available != 1 || detail.Requested != 4 {
		t.Fatalf("unexpected shortage detail: %+v", detail)
	}

	// The aborted transaction must not leave a partial decrement behind.
	if got := loadProduct(t, db, productA); got.QuantityAvailable != 5 {
		t.Fatalf("product a should be untouched, got %+v", got)
	}
	if got := loadProduct(t, db, productB); got.QuantityAvailable != 1 {
		t.Fatalf("product b should be untouched, got %+v", got)
	}
}

func TestReserveRejectsNonPositiveQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	product := seedProduct(t, db, 5, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []ReserveItem{{ProductID: product, Quantity: 0}})
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseRestoresAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	product := seedProduct(t, db, 2, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, product, 3)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := loadProduct(t, db, product); got.QuantityAvailable != 5 || got.QuantityOnHand != 5 {
		t.Fatalf("unexpected counters after release: %+v", got)
	}
}

func TestConsumeDecrementsOnHandOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	product := seedProduct(t, db, 3, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Consume(ctx, tx, product, 2)
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if got := loadProduct(t, db, product); got.QuantityAvailable != 3 || got.QuantityOnHand != 3 {
		t.Fatalf("unexpected counters after consume: %+v", got)
	}
}

func TestConsumeInsufficientOnHand(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	product := seedProduct(t, db, 0, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Consume(ctx, tx, product, 2)
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReconciliationMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loadProduct(t, db, product); got.QuantityOnHand != 1 {
		t.Fatalf("on-hand should be untouched, got %+v", got)
	}
}

func seedProduct(t *testing.T, db *gorm.DB, available, onHand int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Name:              "widget",
		PriceCents:        1500,
		QuantityAvailable: available,
		QuantityOnHand:    onHand,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func loadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}
