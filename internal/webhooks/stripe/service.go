package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/internal/inventory"
	"github.com/danmarrec/storelane-backend/internal/orders"
	"github.com/danmarrec/storelane-backend/internal/reservations"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	"github.com/danmarrec/storelane-backend/pkg/enums"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the reconciler's dependencies.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	ReservationsRepo  reservations.Repository
	TransactionsRepo  transactions.Repository
	Stock             inventory.Ledger
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles gateway outcomes against the reservation rows a
// checkout parked. Completed sessions consume stock, expired sessions return
// it; every transition is guarded so duplicate deliveries and sweeper races
// resolve to the same end state.
type Service struct {
	orders orders.Repository
	resv   reservations.Repository
	txns   transactions.Repository
	stock  inventory.Ledger
	tx     txRunner
	log    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.ReservationsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservations repo required")
	}
	if params.TransactionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactions repo required")
	}
	if params.Stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders: params.OrdersRepo,
		resv:   params.ReservationsRepo,
		txns:   params.TransactionsRepo,
		stock:  params.Stock,
		tx:     params.TransactionRunner,
		log:    params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// Async payment methods complete the session before the money
			// clears; the paid notification arrives as a later event.
			return nil
		}
		return s.fulfill(ctx, session, event.Data.Raw)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.expire(ctx, session, event.Data.Raw)
	default:
		return nil
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}

// fulfill turns a paid session into consumed stock, a completed transaction
// and a paid order, atomically.
func (s *Service) fulfill(ctx context.Context, session *stripe.CheckoutSession, raw json.RawMessage) error {
	ctx = s.log.WithSessionID(ctx, session.ID)
	if session.ClientReferenceID == "" {
		return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "paid session carries no order key")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		resvRepo := s.resv.WithTx(tx)
		txnRepo := s.txns.WithTx(tx)

		order, err := ordersRepo.FindByOrderKey(ctx, session.ClientReferenceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "paid session references unknown order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by key")
		}
		ctx := s.log.WithOrderID(ctx, order.ID.String())

		// Row lock first, then re-read: a concurrent delivery that won the
		// race has already flipped the order to paid.
		if _, err := ordersRepo.Claim(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		order, err = ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if order.Status == enums.OrderStatusPaid {
			s.log.Info(ctx, "duplicate paid event ignored")
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "paid session references non-pending order").
				WithDetails(map[string]any{"order_status": order.Status})
		}

		rows, err := resvRepo.FindActiveByOrderAndSession(ctx, order.ID, session.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session reservations")
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "paid session holds no active reservations")
		}

		sort.Slice(rows, func(i, j int) bool {
			return rows[i].ProductID.String() < rows[j].ProductID.String()
		})
		for _, row := range rows {
			affected, merr := resvRepo.MarkConsumed(ctx, []uuid.UUID{row.ID})
			if merr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, merr, "mark reservation consumed")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "reservation left active state mid-fulfillment")
			}
			if cerr := s.stock.Consume(ctx, tx, row.ProductID, row.Quantity); cerr != nil {
				return cerr
			}
		}

		affected, err := txnRepo.MarkCompleted(ctx, session.ID, raw)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete transaction")
		}
		if affected == 0 {
			existing, ferr := txnRepo.FindByReferenceID(ctx, session.ID)
			if ferr != nil {
				if errors.Is(ferr, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "paid session has no recorded transaction")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load transaction")
			}
			if existing.Status != enums.TransactionStatusCompleted {
				return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "transaction already resolved as failed")
			}
		}

		affected, err = ordersRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPaid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "order left pending state mid-fulfillment")
		}

		s.log.Info(ctx, "order fulfilled from paid session")
		return nil
	})
}

// expire returns an abandoned session's stock and fails its transaction.
// Rows the sweeper already reclaimed are skipped by the status guard, so the
// two paths commute.
func (s *Service) expire(ctx context.Context, session *stripe.CheckoutSession, raw json.RawMessage) error {
	ctx = s.log.WithSessionID(ctx, session.ID)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.resv.WithTx(tx).FindActiveBySession(ctx, session.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session reservations")
		}

		released, err := reservations.ReleaseRows(ctx, tx, s.resv, s.stock, rows)
		if err != nil {
			return err
		}

		if _, err := s.txns.WithTx(tx).MarkFailed(ctx, session.ID, raw); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail transaction")
		}

		if released > 0 {
			s.log.Info(ctx, "expired session released reservations")
		}
		return nil
	})
}
