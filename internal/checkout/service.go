package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/internal/inventory"
	"github.com/danmarrec/storelane-backend/internal/orders"
	"github.com/danmarrec/storelane-backend/internal/reservations"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	"github.com/danmarrec/storelane-backend/pkg/config"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionGateway is the slice of the payment gateway the orchestrator needs.
type SessionGateway interface {
	CreateCheckoutSession(ctx context.Context, input stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// StartResult is what the caller needs to send the buyer to the gateway.
type StartResult struct {
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Reused      bool      `json:"reused"`
}

// Service starts checkouts: it reserves stock, opens a gateway session and
// binds the two together so the webhook reconciler can finish the job.
type Service interface {
	Start(ctx context.Context, userID, orderID uuid.UUID) (*StartResult, error)
}

type service struct {
	orders  orders.Repository
	resv    reservations.Repository
	txns    transactions.Repository
	stock   inventory.Ledger
	gateway SessionGateway
	tx      txRunner
	cfg     config.CheckoutConfig
	log     *logger.Logger
	now     func() time.Time
}

// NewService builds the checkout orchestrator with the required dependencies.
func NewService(
	ordersRepo orders.Repository,
	resvRepo reservations.Repository,
	txnRepo transactions.Repository,
	stock inventory.Ledger,
	gateway SessionGateway,
	tx txRunner,
	cfg config.CheckoutConfig,
	log *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if resvRepo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("session gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:  ordersRepo,
		resv:    resvRepo,
		txns:    txnRepo,
		stock:   stock,
		gateway: gateway,
		tx:      tx,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *service) Start(ctx context.Context, userID, orderID uuid.UUID) (*StartResult, error) {
	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := checkoutable(order); err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	// Fast path: an unexpired session already holds this order's stock, so
	// hand the buyer the same payment page instead of reserving twice.
	if result, rerr := s.reuseSession(ctx, orderID, s.now()); rerr != nil || result != nil {
		return result, rerr
	}

	expiresAt := s.now().Add(s.cfg.ReservationTTL)
	rows, err := s.reserve(ctx, order, expiresAt)
	if err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx, order, expiresAt)
	if err != nil {
		s.compensate(ctx, rows)
		return nil, err
	}
	ctx = s.log.WithSessionID(ctx, session.ID)

	if err := s.bind(ctx, order, rows, session.ID); err != nil {
		s.compensate(ctx, rows)
		return nil, err
	}

	s.log.Info(ctx, "checkout session started")
	return &StartResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

func checkoutable(order *models.Order) error {
	switch order.Status {
	case enums.OrderStatusPending:
		return nil
	case enums.OrderStatusPaid, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order has already been paid")
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "order cannot be checked out")
	}
}

func (s *service) reuseSession(ctx context.Context, orderID uuid.UUID, now time.Time) (*StartResult, error) {
	sessions, err := s.resv.FindActiveSessions(ctx, orderID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active sessions")
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	if len(sessions) > 1 {
		s.log.Warn(ctx, "order has multiple active checkout sessions, reusing newest")
	}

	newest := sessions[0]
	session, err := s.gateway.RetrieveCheckoutSession(ctx, newest.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "retrieve checkout session")
	}
	s.log.Info(s.log.WithSessionID(ctx, session.ID), "checkout session reused")
	return &StartResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		ExpiresAt:   newest.ExpiresAt,
		Reused:      true,
	}, nil
}

// reserve atomically takes stock for every line item and parks the unbound
// reservation rows. All-or-nothing: any shortage aborts the transaction.
func (s *service) reserve(ctx context.Context, order *models.Order, expiresAt time.Time) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		resvRepo := s.resv.WithTx(tx)

		// Row lock on the order serializes competing starts for it.
		claimed, cerr := ordersRepo.Claim(ctx, order.ID)
		if cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "claim order")
		}
		if claimed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		current, ferr := ordersRepo.FindByID(ctx, order.ID)
		if ferr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "reload order")
		}
		if err := checkoutable(current); err != nil {
			return err
		}

		active, aerr := resvRepo.FindActiveByOrder(ctx, order.ID)
		if aerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, aerr, "load active reservations")
		}
		now := s.now()
		for _, row := range active {
			if row.ExpiresAt.Before(now) {
				continue // sweeper's problem
			}
			if row.StripeSessionID == nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
			}
			// A bound batch appeared since the fast-path lookup; the caller
			// retries and lands on the reuse path.
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active checkout session")
		}

		items := make([]inventory.ReserveItem, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, inventory.ReserveItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := s.stock.Reserve(ctx, tx, items); err != nil {
			return err
		}

		rows = make([]models.StockReservation, 0, len(order.Items))
		for _, item := range order.Items {
			rows = append(rows, models.StockReservation{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				UserID:    order.UserID,
				Quantity:  item.Quantity,
				Status:    enums.ReservationStatusActive,
				ExpiresAt: expiresAt,
			})
		}
		return resvRepo.CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *service) openSession(ctx context.Context, order *models.Order, expiresAt time.Time) (*stripe.CheckoutSession, error) {
	input := stripe.CheckoutSessionInput{
		Currency:          s.cfg.Currency,
		SuccessURL:        s.cfg.SuccessURL,
		ClientReferenceID: order.OrderKey,
		ExpiresAt:         expiresAt,
	}
	for _, item := range order.Items {
		input.LineItems = append(input.LineItems, stripe.CheckoutLineItem{
			Name:            item.Name,
			UnitAmountCents: int64(item.PriceCents),
			Quantity:        int64(item.Quantity),
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create checkout session")
	}
	return session, nil
}

func (s *service) bind(ctx context.Context, order *models.Order, rows []models.StockReservation, sessionID string) error {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		bound, berr := s.resv.WithTx(tx).BindSession(ctx, ids, sessionID)
		if berr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, berr, "bind checkout session")
		}
		if bound != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation batch no longer bindable")
		}

		amount := decimal.NewFromInt(int64(order.TotalCents)).Shift(-2)
		_, terr := s.txns.WithTx(tx).Create(ctx, &models.Transaction{
			OrderID:     order.ID,
			ReferenceID: sessionID,
			Amount:      amount,
			Status:      enums.TransactionStatusPending,
		})
		if terr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, terr, "record pending transaction")
		}
		return nil
	})
}

// compensate returns reserved stock after a failed session create or bind.
// Best effort: leftovers expire into the sweeper's path.
func (s *service) compensate(ctx context.Context, rows []models.StockReservation) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, rerr := reservations.ReleaseRows(ctx, tx, s.resv, s.stock, rows)
		return rerr
	})
	if err != nil {
		s.log.Error(ctx, "compensating reservation release failed", err)
	}
}
