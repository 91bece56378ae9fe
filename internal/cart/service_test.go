package cart

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ezelectronics/backend/internal/apperr"
	"github.com/ezelectronics/backend/internal/keylock"
	"github.com/ezelectronics/backend/internal/models"
	"github.com/ezelectronics/backend/internal/util"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Cart{},
		&models.CartLineItem{},
		&models.ProductReview{},
	))
	return db
}

func newTestService(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	svc := NewCartService(&GormRepo{DB: db}, keylock.New(), keylock.New(), nil)
	return svc, db
}

func seedProduct(t *testing.T, db *gorm.DB, model string, price float64, quantity int) {
	t.Helper()

	require.NoError(t, db.Create(&models.Product{
		Model:        model,
		Category:     models.CategorySmartphone,
		Quantity:     quantity,
		SellingPrice: price,
		ArrivalDate:  "2024-01-01",
	}).Error)
}

func stockOf(t *testing.T, db *gorm.DB, model string) int {
	t.Helper()

	var p models.Product
	require.NoError(t, db.Where("model = ?", model).First(&p).Error)
	return p.Quantity
}

// requireTotalInvariant checks total == sum(quantity*price) for every cart.
func requireTotalInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()

	var carts []models.Cart
	require.NoError(t, db.Preload("Items").Find(&carts).Error)
	for _, c := range carts {
		var sum float64
		for _, line := range c.Items {
			sum += float64(line.Quantity) * line.Price
		}
		require.InDelta(t, sum, c.Total, 1e-9, "cart %s total drifted from its line items", c.ID)
	}
}

func TestGetCart_NoCartReturnsEmptyCart(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", cart.Customer)
	assert.False(t, cart.Paid)
	assert.Empty(t, cart.PaymentDate)
	assert.Zero(t, cart.Total)
	assert.Empty(t, cart.Items)

	// nothing was persisted for the synthetic cart
	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddToCart_CreatesCartWithFirstLine(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 999.99, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "X", cart.Items[0].Model)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, models.CategorySmartphone, cart.Items[0].Category)
	assert.InDelta(t, 999.99, cart.Items[0].Price, 1e-9)
	assert.InDelta(t, 999.99, cart.Total, 1e-9)

	// adding never touches stock
	assert.Equal(t, 5, stockOf(t, db, "X"))
	requireTotalInvariant(t, db)
}

func TestAddToCart_TwiceIncrementsOneLine(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "repeat add must increment, not duplicate the line")
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.InDelta(t, 200, cart.Total, 1e-9)
	requireTotalInvariant(t, db)
}

func TestAddToCart_KeepsOneUnpaidCartPerCustomer(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)
	seedProduct(t, db, "Y", 50, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "Y"))

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).
		Where("customer = ? AND paid = ?", "alice", false).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddToCart_Errors(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "SoldOut", 100, 0)

	tests := []struct {
		name    string
		model   string
		wantErr error
	}{
		{name: "unknown product", model: "nope", wantErr: apperr.ErrProductNotFound},
		{name: "zero stock", model: "SoldOut", wantErr: apperr.ErrEmptyProductStock},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddToCart(ctx, "alice", tt.model)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// no cart was created by the failed adds
	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRemoveProductFromCart_DecrementsLine(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	require.NoError(t, svc.RemoveProductFromCart(ctx, "alice", "X"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.InDelta(t, 100, cart.Total, 1e-9)
	requireTotalInvariant(t, db)
}

func TestRemoveProductFromCart_RemovesLastUnit(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.RemoveProductFromCart(ctx, "alice", "X"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
	requireTotalInvariant(t, db)
}

func TestRemoveProductFromCart_UsesSnapshotPrice(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	// catalog price changes after the lines were snapshotted
	require.NoError(t, db.Model(&models.Product{}).Where("model = ?", "X").
		Update("selling_price", 250).Error)

	require.NoError(t, svc.RemoveProductFromCart(ctx, "alice", "X"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 100, cart.Total, 1e-9, "total must decrease by the stored unit price")
}

func TestRemoveProductFromCart_Errors(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)
	seedProduct(t, db, "Y", 50, 5)

	t.Run("unknown product", func(t *testing.T) {
		err := svc.RemoveProductFromCart(ctx, "alice", "nope")
		assert.ErrorIs(t, err, apperr.ErrProductNotFound)
	})

	t.Run("no unpaid cart", func(t *testing.T) {
		err := svc.RemoveProductFromCart(ctx, "alice", "X")
		assert.ErrorIs(t, err, apperr.ErrCartNotFound)
	})

	t.Run("product not in cart", func(t *testing.T) {
		require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
		err := svc.RemoveProductFromCart(ctx, "alice", "Y")
		assert.ErrorIs(t, err, apperr.ErrProductNotInCart)
	})
}

func TestCheckoutCart_PaysCartAndDecrementsStock(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)
	seedProduct(t, db, "Y", 50, 3)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "Y"))

	require.NoError(t, svc.CheckoutCart(ctx, "alice"))

	assert.Equal(t, 3, stockOf(t, db, "X"))
	assert.Equal(t, 2, stockOf(t, db, "Y"))

	var paid models.Cart
	require.NoError(t, db.Preload("Items").
		Where("customer = ? AND paid = ?", "alice", true).First(&paid).Error)
	assert.Equal(t, util.Today(), paid.PaymentDate)
	assert.InDelta(t, 250, paid.Total, 1e-9)

	// the unpaid cart is gone; a fresh read yields a synthetic empty cart
	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	requireTotalInvariant(t, db)
}

func TestCheckoutCart_NoCart(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	err := svc.CheckoutCart(context.Background(), "alice")
	assert.ErrorIs(t, err, apperr.ErrCartNotFound)
}

func TestCheckoutCart_EmptyCart(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.RemoveProductFromCart(ctx, "alice", "X"))

	err := svc.CheckoutCart(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCheckoutCart_InsufficientStock(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	}

	// stock dropped below the cart's quantity since add-time
	require.NoError(t, db.Model(&models.Product{}).Where("model = ?", "X").
		Update("quantity", 2).Error)

	err := svc.CheckoutCart(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrLowProductStock)

	assert.Equal(t, 2, stockOf(t, db, "X"), "failed checkout must not touch stock")

	cart, getErr := svc.GetCart(ctx, "alice")
	require.NoError(t, getErr)
	assert.False(t, cart.Paid)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.InDelta(t, 300, cart.Total, 1e-9)
}

func TestCheckoutCart_EmptyStock(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 1)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, db.Model(&models.Product{}).Where("model = ?", "X").
		Update("quantity", 0).Error)

	err := svc.CheckoutCart(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrEmptyProductStock)
	assert.Equal(t, 0, stockOf(t, db, "X"))
}

func TestCheckoutCart_AllOrNothing(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "A", 10, 5)
	seedProduct(t, db, "B", 20, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "A"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "B"))

	// B can no longer be satisfied; A must stay untouched
	require.NoError(t, db.Model(&models.Product{}).Where("model = ?", "B").
		Update("quantity", 0).Error)

	err := svc.CheckoutCart(ctx, "alice")
	require.Error(t, err)

	assert.Equal(t, 5, stockOf(t, db, "A"))
	assert.Equal(t, 0, stockOf(t, db, "B"))

	cart, getErr := svc.GetCart(ctx, "alice")
	require.NoError(t, getErr)
	assert.Len(t, cart.Items, 2)
	assert.False(t, cart.Paid)
}

func TestClearCart(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 5)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	require.NoError(t, svc.ClearCart(ctx, "alice"))

	// the cart header survives with no lines and a zero total
	var cart models.Cart
	require.NoError(t, db.Preload("Items").
		Where("customer = ? AND paid = ?", "alice", false).First(&cart).Error)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
	requireTotalInvariant(t, db)
}

func TestClearCart_NoCart(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	err := svc.ClearCart(context.Background(), "alice")
	assert.ErrorIs(t, err, apperr.ErrCartNotFound)
}

func TestGetCustomerCarts_ListsOnlyPaidCarts(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 10)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.CheckoutCart(ctx, "alice"))

	// a new in-progress cart must not show up in the history
	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))

	history, err := svc.GetCustomerCarts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Paid)
	assert.InDelta(t, 100, history[0].Total, 1e-9)

	other, err := svc.GetCustomerCarts(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDeleteAllCarts(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "X", 100, 10)

	require.NoError(t, svc.AddToCart(ctx, "alice", "X"))
	require.NoError(t, svc.AddToCart(ctx, "bob", "X"))

	all, err := svc.GetAllCarts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, svc.DeleteAllCarts(ctx))

	all, err = svc.GetAllCarts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	var lines int64
	require.NoError(t, db.Model(&models.CartLineItem{}).Count(&lines).Error)
	assert.Zero(t, lines)
}
