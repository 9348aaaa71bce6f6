package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// ActiveSession is a gateway session that still holds live reservations for
// an order, newest batch first.
type ActiveSession struct {
	SessionID string
	ExpiresAt time.Time
}

// Repository defines persistence operations for stock reservation rows.
// Status transitions are guarded on the active state so a row can leave it
// exactly once regardless of which actor reaches it first.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.StockReservation) error
	BindSession(ctx context.Context, ids []uuid.UUID, sessionID string) (int64, error)
	FindActiveSessions(ctx context.Context, orderID uuid.UUID, now time.Time) ([]ActiveSession, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	FindActiveBySession(ctx context.Context, sessionID string) ([]models.StockReservation, error)
	FindActiveByOrderAndSession(ctx context.Context, orderID uuid.UUID, sessionID string) ([]models.StockReservation, error)
	MarkConsumed(ctx context.Context, ids []uuid.UUID) (int64, error)
	MarkReleased(ctx context.Context, ids []uuid.UUID) (int64, error)
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, rows []models.StockReservation) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// BindSession stamps the gateway session onto freshly reserved rows. The
// guard on the unbound active state keeps a retried checkout from stealing
// rows that already belong to another session.
func (r *repository) BindSession(ctx context.Context, ids []uuid.UUID, sessionID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id IN ?", ids).
		Where("status = ?", enums.ReservationStatusActive).
		Where("stripe_session_id IS NULL").
		Update("stripe_session_id", sessionID)
	return res.RowsAffected, res.Error
}

func (r *repository) FindActiveSessions(ctx context.Context, orderID uuid.UUID, now time.Time) ([]ActiveSession, error) {
	var sessions []ActiveSession
	err := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Select("stripe_session_id AS session_id, MIN(expires_at) AS expires_at").
		Where("order_id = ?", orderID).
		Where("status = ?", enums.ReservationStatusActive).
		Where("stripe_session_id IS NOT NULL").
		Where("expires_at > ?", now).
		Group("stripe_session_id").
		Order("MAX(created_at) DESC").
		Scan(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("status = ?", enums.ReservationStatusActive).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionID string) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		Where("status = ?", enums.ReservationStatusActive).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActiveByOrderAndSession(ctx context.Context, orderID uuid.UUID, sessionID string) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("stripe_session_id = ?", sessionID).
		Where("status = ?", enums.ReservationStatusActive).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkConsumed(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return r.transition(ctx, ids, enums.ReservationStatusConsumed)
}

func (r *repository) MarkReleased(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return r.transition(ctx, ids, enums.ReservationStatusReleased)
}

func (r *repository) transition(ctx context.Context, ids []uuid.UUID, to enums.ReservationStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id IN ?", ids).
		Where("status = ?", enums.ReservationStatusActive).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.ReservationStatusActive).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
