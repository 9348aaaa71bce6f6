package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/internal/inventory"
	"github.com/danmarrec/storelane-backend/internal/reservations"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/metrics"
)

const defaultBatchSize = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationExpiryJobParams wire the expiry job's dependencies.
type ReservationExpiryJobParams struct {
	ReservationsRepo  reservations.Repository
	TransactionsRepo  transactions.Repository
	Stock             inventory.Ledger
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.SweeperMetrics
	BatchSize         int
	Now               func() time.Time
}

// ReservationExpiryJob returns stock held by reservations whose deadline
// passed without a payment outcome. It covers both abandoned sessions the
// gateway never reported on and unbound rows a crashed checkout left behind.
type ReservationExpiryJob struct {
	resv    reservations.Repository
	txns    transactions.Repository
	stock   inventory.Ledger
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.SweeperMetrics
	batch   int
	now     func() time.Time
}

// NewReservationExpiryJob builds the expiry job.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (*ReservationExpiryJob, error) {
	if params.ReservationsRepo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.TransactionsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ReservationExpiryJob{
		resv:    params.ReservationsRepo,
		txns:    params.TransactionsRepo,
		stock:   params.Stock,
		tx:      params.TransactionRunner,
		logg:    params.Logger,
		metrics: params.Metrics,
		batch:   batch,
		now:     now,
	}, nil
}

// Name implements Job.
func (j *ReservationExpiryJob) Name() string { return "reservation_expiry" }

// Run releases one batch of expired holds, grouped per session so each
// session's rows and its pending transaction settle in one transaction. A
// reconciler that consumed or released a row first wins: the status guards
// make the overlap a no-op here.
func (j *ReservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.resv.FindExpiredActive(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("find expired reservations: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	var errs error
	released := 0
	for sessionID, sessionRows := range groupBySession(expired) {
		err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
			count, rerr := reservations.ReleaseRows(ctx, tx, j.resv, j.stock, sessionRows)
			if rerr != nil {
				return rerr
			}
			released += count
			if sessionID == "" || count == 0 {
				return nil
			}
			// Nobody will pay against this session anymore.
			_, ferr := j.txns.WithTx(tx).MarkFailed(ctx, sessionID, nil)
			return ferr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep session %q: %w", sessionID, err))
		}
	}

	if j.metrics != nil && released > 0 {
		j.metrics.AddReleased(j.Name(), released)
	}
	if released > 0 {
		j.logg.Info(j.logg.WithField(ctx, "released", released), "expired reservations released")
	}
	return errs
}

// groupBySession buckets rows per gateway session; unbound rows share the
// empty key.
func groupBySession(rows []models.StockReservation) map[string][]models.StockReservation {
	groups := make(map[string][]models.StockReservation)
	for _, row := range rows {
		key := ""
		if row.StripeSessionID != nil {
			key = *row.StripeSessionID
		}
		groups[key] = append(groups[key], row)
	}
	return groups
}
