package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
)

// ReserveItem is one requested hold against a product's available counter.
type ReserveItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// ShortageDetail reports the product that could not cover a reservation.
type ShortageDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

// Ledger moves the two stock counters. Every method runs inside a
// caller-supplied transaction; a failure must abort the whole transaction so
// the counters never move partially.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, items []ReserveItem) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledgerImpl struct{}

// NewLedger exposes the default counter implementation.
func NewLedger() Ledger {
	return ledgerImpl{}
}

// Reserve decrements quantity_available for every item, touching products in
// ascending id order so concurrent multi-product checkouts cannot deadlock.
// The guard on the UPDATE doubles as the availability check: zero rows
// affected means the product cannot cover the request.
func (ledgerImpl) Reserve(ctx context.Context, tx *gorm.DB, items []ReserveItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reserve")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
		}
	}

	sorted := make([]ReserveItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	for _, item := range sorted {
		res := tx.WithContext(ctx).Exec(`
			UPDATE products
			SET quantity_available = quantity_available - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND quantity_available >= ?
		`, item.Quantity, item.ProductID, item.Quantity)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			available, err := counterQty(ctx, tx, item.ProductID, "quantity_available")
			if err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(ShortageDetail{
					ProductID: item.ProductID,
					Available: available,
					Requested: item.Quantity,
				})
		}
	}
	return nil
}

// Release returns qty units to quantity_available. Releasing more than was
// reserved is a caller bug, so there is no upper guard; the row must exist.
func (ledgerImpl) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity_available = quantity_available + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found for stock release")
	}
	return nil
}

// Consume decrements quantity_on_hand after a confirmed payment. Available
// stays untouched: the reserve already took the units out of circulation.
func (ledgerImpl) Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock consume")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity_on_hand = quantity_on_hand - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity_on_hand >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume stock")
	}
	if res.RowsAffected == 0 {
		onHand, err := counterQty(ctx, tx, productID, "quantity_on_hand")
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "on-hand stock cannot cover paid reservation").
			WithDetails(ShortageDetail{ProductID: productID, Available: onHand, Requested: qty})
	}
	return nil
}

func counterQty(ctx context.Context, tx *gorm.DB, productID uuid.UUID, column string) (int, error) {
	var qty int
	err := tx.WithContext(ctx).
		Table("products").
		Select(column).
		Where("id = ?", productID).
		Scan(&qty).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product counter")
	}
	return qty, nil
}
