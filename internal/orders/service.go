package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/internal/inventory"
	"github.com/danmarrec/storelane-backend/internal/reservations"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations outside of checkout itself.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) error
}

type service struct {
	repo  Repository
	resv  reservations.Repository
	stock inventory.Ledger
	tx    txRunner
	log   *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, resv reservations.Repository, stock inventory.Ledger, tx txRunner, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if resv == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, resv: resv, stock: stock, tx: tx, log: log}, nil
}

// Create snapshots prices, names and the shipping address into a pending
// order. Availability gets a soft check against the loaded products so the
// caller learns about a shortage early; only the checkout reserve is allowed
// to move stock, and it re-checks under the row lock.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order items")
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	address, err := s.repo.FindAddressByIDAndUser(ctx, input.AddressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
	}

	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	recipient := ""
	if input.RecipientName != nil {
		recipient = *input.RecipientName
	}
	if recipient == "" {
		user, uerr := s.repo.FindUserByID(ctx, userID)
		if uerr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "load user")
		}
		recipient = user.Name
	}

	order := &models.Order{
		UserID:               userID,
		AddressID:            address.ID,
		ShippingAddressLine1: address.AddressLine1,
		ShippingCity:         address.City,
		ShippingPostalCode:   address.PostalCode,
		RecipientName:        recipient,
		Status:               enums.OrderStatusPending,
	}
	for _, item := range input.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if product.QuantityAvailable < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "not enough stock for product").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  product.QuantityAvailable,
					"requested":  item.Quantity,
				})
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Quantity:   item.Quantity,
		})
		order.TotalCents += product.PriceCents * item.Quantity
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, cerr := s.repo.WithTx(tx).Create(ctx, order)
		return cerr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	s.log.Info(s.log.WithOrderID(ctx, order.ID.String()), "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// Cancel abandons a pending order and returns any live reservations to
// stock. Paid or shipped orders are immutable here.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) error {
	ctx = s.log.WithOrderID(ctx, orderID.String())
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, ferr := repo.FindByIDAndUser(ctx, orderID, userID)
		if ferr != nil {
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load order")
		}
		// The status guard doubles as the row lock; a reconciler that got
		// there first leaves nothing pending to cancel.
		affected, uerr := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "cancel order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is no longer pending")
		}

		rows, rerr := s.resv.WithTx(tx).FindActiveByOrder(ctx, order.ID)
		if rerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "load reservations")
		}
		released, relErr := reservations.ReleaseRows(ctx, tx, s.resv, s.stock, rows)
		if relErr != nil {
			return relErr
		}
		if released > 0 {
			s.log.Info(ctx, "cancelled order released reservations")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "order cancelled")
	return nil
}
