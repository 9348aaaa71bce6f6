package transactions

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// Repository defines persistence operations for gateway transactions.
// The unique reference id makes Create the durable idempotency barrier for
// checkout retries; the pending guard on the status updates makes completion
// a one-way door.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, referenceID string, raw json.RawMessage) (int64, error)
	MarkFailed(ctx context.Context, referenceID string, raw json.RawMessage) (int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
	List(ctx context.Context, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transaction repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "reference_id = ?", referenceID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) MarkCompleted(ctx context.Context, referenceID string, raw json.RawMessage) (int64, error) {
	return r.resolve(ctx, referenceID, enums.TransactionStatusCompleted, raw)
}

func (r *repository) MarkFailed(ctx context.Context, referenceID string, raw json.RawMessage) (int64, error) {
	return r.resolve(ctx, referenceID, enums.TransactionStatusFailed, raw)
}

func (r *repository) resolve(ctx context.Context, referenceID string, to enums.TransactionStatus, raw json.RawMessage) (int64, error) {
	updates := map[string]any{"status": to}
	if len(raw) > 0 {
		updates["raw_response"] = raw
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("reference_id = ?", referenceID).
		Where("status = ?", enums.TransactionStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
