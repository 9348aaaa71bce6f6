package reservations

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
)

// StockReleaser returns previously reserved units to the available counter.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// ReleaseRows flips the given rows to released and returns their units to
// stock, one row at a time so a row another actor consumed in the meantime
// is skipped rather than double-counted. Products are touched in ascending
// id order to keep the lock order identical to the reserve path. Returns the
// number of rows actually released.
func ReleaseRows(ctx context.Context, tx *gorm.DB, repo Repository, stock StockReleaser, rows []models.StockReservation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation release")
	}

	sorted := make([]models.StockReservation, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	scoped := repo.WithTx(tx)
	released := 0
	for _, row := range sorted {
		affected, err := scoped.MarkReleased(ctx, []uuid.UUID{row.ID})
		if err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservation released")
		}
		if affected == 0 {
			continue
		}
		if err := stock.Release(ctx, tx, row.ProductID, row.Quantity); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}
