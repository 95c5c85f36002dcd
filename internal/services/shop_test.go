package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

var testItems = []models.ShopItem{
	{ID: "frame-gold", Name: "Gold frame", Category: "frame", Price: 500, Currency: models.CurrencyCoins, Stock: -1, Active: true},
	{ID: "frame-diamond", Name: "Diamond frame", Category: "frame", Price: 5, Currency: models.CurrencyDiamonds, Stock: -1, Active: true},
	{ID: "badge-founder", Name: "Founder badge", Category: "badge", Price: 100, Currency: models.CurrencyCoins, Stock: 1, Active: true},
	{ID: "retired", Name: "Retired", Category: "badge", Price: 1, Currency: models.CurrencyCoins, Stock: -1, Active: false},
}

func seedShop(t *testing.T, env *testEnv) {
	t.Helper()
	created, err := env.shop.Seed(context.Background(), testItems)
	require.NoError(t, err)
	require.Equal(t, len(testItems), created)
}

func TestShopSeedKeepsLiveStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedShop(t, env)

	user := env.signup(t, "alice")
	env.setCoins(t, user.ID, 1000)
	_, err := env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "badge-founder", Quantity: 1})
	require.NoError(t, err)

	created, err := env.shop.Seed(ctx, testItems)
	require.NoError(t, err)
	assert.Zero(t, created)

	item, err := env.shop.GetItem(ctx, "badge-founder")
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Stock)

	items, err := env.shop.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestPurchaseItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedShop(t, env)
	user := env.signup(t, "bob")
	env.setCoins(t, user.ID, 1200)
	env.setDiamonds(t, user.ID, 4)

	res, err := env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-gold", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Cost)
	assert.Equal(t, int64(200), res.Balance)
	assert.Equal(t, int64(2), res.Owned)
	assert.Equal(t, models.CurrencyCoins, res.Currency)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-gold", Quantity: 1})
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-diamond", Quantity: 1})
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "retired", Quantity: 1})
	assert.ErrorIs(t, err, services.ErrItemUnavailable)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-gold", Quantity: 0})
	assert.ErrorIs(t, err, services.ErrInvalidAmount)
}

func TestPurchaseOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedShop(t, env)
	first := env.signup(t, "carol")
	second := env.signup(t, "dave")
	env.setCoins(t, first.ID, 500)
	env.setCoins(t, second.ID, 500)

	_, err := env.shop.Purchase(ctx, first.ID, &models.PurchaseRequest{ItemID: "badge-founder", Quantity: 2})
	assert.ErrorIs(t, err, services.ErrOutOfStock)

	_, err = env.shop.Purchase(ctx, first.ID, &models.PurchaseRequest{ItemID: "badge-founder", Quantity: 1})
	require.NoError(t, err)

	_, err = env.shop.Purchase(ctx, second.ID, &models.PurchaseRequest{ItemID: "badge-founder", Quantity: 1})
	assert.ErrorIs(t, err, services.ErrOutOfStock)
	assert.Equal(t, int64(500), env.coins(t, second.ID))
}

func TestEquipItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedShop(t, env)
	user := env.signup(t, "erin")
	env.setCoins(t, user.ID, 1000)
	env.setDiamonds(t, user.ID, 5)

	_, err := env.shop.Equip(ctx, user.ID, &models.EquipRequest{ItemID: "frame-gold", Equip: true})
	assert.ErrorIs(t, err, services.ErrNotOwned)

	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-gold", Quantity: 1})
	require.NoError(t, err)
	_, err = env.shop.Purchase(ctx, user.ID, &models.PurchaseRequest{ItemID: "frame-diamond", Quantity: 1})
	require.NoError(t, err)

	equipped, err := env.shop.Equip(ctx, user.ID, &models.EquipRequest{ItemID: "frame-gold", Equip: true})
	require.NoError(t, err)
	assert.Equal(t, "frame-gold", equipped["frame"])

	// Same category replaces the previous item.
	equipped, err = env.shop.Equip(ctx, user.ID, &models.EquipRequest{ItemID: "frame-diamond", Equip: true})
	require.NoError(t, err)
	assert.Equal(t, "frame-diamond", equipped["frame"])

	inv, err := env.shop.Inventory(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, inv, 2)
	for _, entry := range inv {
		assert.Equal(t, entry.Item.ID == "frame-diamond", entry.Equipped, entry.Item.ID)
	}

	equipped, err = env.shop.Equip(ctx, user.ID, &models.EquipRequest{ItemID: "frame-diamond", Equip: false})
	require.NoError(t, err)
	assert.NotContains(t, equipped, "frame")
}
