package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
)

func TestUpdateStatusGuardsCurrentState(t *testing.T) {
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	ctx := context.Background()
	user := env.seedUser("Dana")
	order := seedRepoOrder(t, env, user.ID)

	affected, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// The guard makes the transition one-way: a repeat matches zero rows.
	affected, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Zero(t, affected)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
}

func TestFindByOrderKeyLoadsItems(t *testing.T) {
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	ctx := context.Background()
	user := env.seedUser("Dana")
	product := env.seedProduct("Thermos", 1800, 4)
	order := seedRepoOrder(t, env, user.ID)
	item := models.OrderItem{
		OrderID:    order.ID,
		ProductID:  product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Quantity:   2,
	}
	require.NoError(t, env.conn.Create(&item).Error)

	found, err := repo.FindByOrderKey(ctx, order.OrderKey)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Thermos", found.Items[0].Name)
}

func TestListByUserNewestFirstAndScoped(t *testing.T) {
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	ctx := context.Background()
	user := env.seedUser("Dana")
	other := env.seedUser("Sam")

	older := seedRepoOrder(t, env, user.ID)
	require.NoError(t, env.conn.Model(&models.Order{}).Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)
	newer := seedRepoOrder(t, env, user.ID)
	seedRepoOrder(t, env, other.ID)

	list, err := repo.ListByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestFindAddressScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	ctx := context.Background()
	user := env.seedUser("Dana")
	other := env.seedUser("Sam")
	address := env.seedAddress(user.ID)

	found, err := repo.FindAddressByIDAndUser(ctx, address.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, address.ID, found.ID)

	_, err = repo.FindAddressByIDAndUser(ctx, address.ID, other.ID)
	assert.Error(t, err)
}

func TestFindProductsByIDs(t *testing.T) {
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	ctx := context.Background()
	first := env.seedProduct("Notebook", 900, 3)
	second := env.seedProduct("Pen", 300, 5)
	env.seedProduct("Unrelated", 100, 1)

	products, err := repo.FindProductsByIDs(ctx, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func seedRepoOrder(t *testing.T, env *testEnv, userID uuid.UUID) models.Order {
	t.Helper()
	order := models.Order{
		UserID:               userID,
		AddressID:            uuid.New(),
		ShippingAddressLine1: "12 Main St",
		ShippingCity:         "Springfield",
		ShippingPostalCode:   "62704",
		RecipientName:        "Dana",
		TotalCents:           1000,
		Status:               enums.OrderStatusPending,
	}
	require.NoError(t, env.conn.Create(&order).Error)
	return order
}
