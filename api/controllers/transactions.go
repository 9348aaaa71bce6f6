package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/danmarrec/storelane-backend/api/responses"
	"github.com/danmarrec/storelane-backend/api/validators"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

const defaultTransactionListLimit = 100

// TransactionResponse is the admin-facing wire shape of a gateway
// transaction. The raw gateway payload stays internal.
type TransactionResponse struct {
	ID          uuid.UUID               `json:"id"`
	OrderID     uuid.UUID               `json:"order_id"`
	ReferenceID string                  `json:"reference_id"`
	Amount      decimal.Decimal         `json:"amount"`
	Status      enums.TransactionStatus `json:"status"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func toTransactionResponse(txn *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          txn.ID,
		OrderID:     txn.OrderID,
		ReferenceID: txn.ReferenceID,
		Amount:      txn.Amount,
		Status:      txn.Status,
		CreatedAt:   txn.CreatedAt,
		UpdatedAt:   txn.UpdatedAt,
	}
}

// TransactionList returns recent transactions for reconciliation review.
func TransactionList(repo transactions.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultTransactionListLimit, 1, 1000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txns, err := repo.List(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions"))
			return
		}
		out := make([]TransactionResponse, 0, len(txns))
		for i := range txns {
			out = append(out, toTransactionResponse(&txns[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// TransactionDetail returns one transaction by id.
func TransactionDetail(repo transactions.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "transactionId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id must be a uuid"))
			return
		}

		txn, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction"))
			return
		}
		responses.WriteSuccess(w, toTransactionResponse(txn))
	}
}
