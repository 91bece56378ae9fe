// Package cart implements the cart lifecycle: a customer has at most one
// unpaid cart, mutated by add/remove/clear, and checkout is the only
// transition to paid. Every mutation keeps the cart total equal to the sum
// of quantity*price over its line items.
package cart

import (
	"context"
	"fmt"

	"github.com/ezelectronics/backend/internal/apperr"
	"github.com/ezelectronics/backend/internal/events"
	"github.com/ezelectronics/backend/internal/keylock"
	"github.com/ezelectronics/backend/internal/logging"
	"github.com/ezelectronics/backend/internal/metrics"
	"github.com/ezelectronics/backend/internal/models"
	"github.com/ezelectronics/backend/internal/util"
)

type CartService struct {
	Repo *GormRepo

	// CartLocks serializes mutations per customer; StockLocks serializes
	// stock mutation per product model and is shared with the catalog.
	CartLocks  *keylock.Map
	StockLocks *keylock.Map

	Producer *events.Producer
}

func NewCartService(repo *GormRepo, cartLocks, stockLocks *keylock.Map, producer *events.Producer) *CartService {
	return &CartService{Repo: repo, CartLocks: cartLocks, StockLocks: stockLocks, Producer: producer}
}

// GetCart returns the customer's unpaid cart. When none exists it returns a
// well-formed empty cart instead of failing; nothing is persisted for it.
func (s *CartService) GetCart(ctx context.Context, customer string) (*models.Cart, error) {
	cart, err := s.Repo.GetUnpaidCart(ctx, customer)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &models.Cart{Customer: customer, Paid: false, Total: 0, Items: []models.CartLineItem{}}, nil
	}
	return cart, nil
}

// AddToCart puts one unit of model into the customer's unpaid cart. The
// product must have stock available globally; units already in carts are
// not reserved.
func (s *CartService) AddToCart(ctx context.Context, customer, model string) (err error) {
	defer func() { metrics.Observe(metrics.CartOperationsTotal, "add", err) }()
	l := logging.FromContext(ctx).With("service", "cart")

	if model == "" {
		return fmt.Errorf("model is required: %w", apperr.ErrValidation)
	}

	s.CartLocks.Lock(customer)
	defer s.CartLocks.Unlock(customer)

	cart, err := s.Repo.AddToCart(ctx, customer, model)
	if err != nil {
		l.Warn("add_to_cart_failed", "customer", customer, "model", model, "error", err)
		return err
	}

	s.Producer.Publish(ctx, events.TopicCartEvents, customer, map[string]interface{}{
		"type":     "add_to_cart",
		"customer": customer,
		"model":    model,
		"total":    cart.Total,
	})
	l.Info("add_to_cart_success", "customer", customer, "model", model)
	return nil
}

// RemoveProductFromCart takes one unit of model out of the unpaid cart.
func (s *CartService) RemoveProductFromCart(ctx context.Context, customer, model string) (err error) {
	defer func() { metrics.Observe(metrics.CartOperationsTotal, "remove", err) }()
	l := logging.FromContext(ctx).With("service", "cart")

	if model == "" {
		return fmt.Errorf("model is required: %w", apperr.ErrValidation)
	}

	s.CartLocks.Lock(customer)
	defer s.CartLocks.Unlock(customer)

	cart, err := s.Repo.RemoveProduct(ctx, customer, model)
	if err != nil {
		l.Warn("remove_from_cart_failed", "customer", customer, "model", model, "error", err)
		return err
	}

	s.Producer.Publish(ctx, events.TopicCartEvents, customer, map[string]interface{}{
		"type":     "remove_from_cart",
		"customer": customer,
		"model":    model,
		"total":    cart.Total,
	})
	l.Info("remove_from_cart_success", "customer", customer, "model", model)
	return nil
}

// CheckoutCart pays the customer's unpaid cart. Stock is re-validated for
// every line item before any decrement: a cart that cannot be satisfied in
// full leaves the catalog untouched and stays unpaid.
func (s *CartService) CheckoutCart(ctx context.Context, customer string) (err error) {
	defer func() { metrics.Observe(metrics.CartOperationsTotal, "checkout", err) }()
	l := logging.FromContext(ctx).With("service", "cart")

	s.CartLocks.Lock(customer)
	defer s.CartLocks.Unlock(customer)

	// The customer lock is already held, so the line set cannot change
	// between reading the models and locking them.
	lineModels, err := s.Repo.UnpaidCartModels(ctx, customer)
	if err != nil {
		return err
	}
	unlock := s.StockLocks.LockAll(lineModels)
	defer unlock()

	cart, err := s.Repo.Checkout(ctx, customer, util.Today())
	if err != nil {
		l.Warn("checkout_failed", "customer", customer, "error", err)
		return err
	}

	metrics.CheckoutTotalValue.Observe(cart.Total)
	for _, line := range cart.Items {
		metrics.ProductStockGauge.WithLabelValues(line.Model).Sub(float64(line.Quantity))
	}
	s.Producer.Publish(ctx, events.TopicCartEvents, customer, map[string]interface{}{
		"type":         "cart_checked_out",
		"customer":     customer,
		"total":        cart.Total,
		"payment_date": cart.PaymentDate,
		"items":        len(cart.Items),
	})
	l.Info("checkout_success", "customer", customer, "total", cart.Total)
	return nil
}

// ClearCart empties the unpaid cart without deleting its header.
func (s *CartService) ClearCart(ctx context.Context, customer string) (err error) {
	defer func() { metrics.Observe(metrics.CartOperationsTotal, "clear", err) }()
	l := logging.FromContext(ctx).With("service", "cart")

	s.CartLocks.Lock(customer)
	defer s.CartLocks.Unlock(customer)

	if _, err = s.Repo.Clear(ctx, customer); err != nil {
		l.Warn("clear_cart_failed", "customer", customer, "error", err)
		return err
	}

	s.Producer.Publish(ctx, events.TopicCartEvents, customer, map[string]interface{}{
		"type":     "cart_cleared",
		"customer": customer,
	})
	l.Info("clear_cart_success", "customer", customer)
	return nil
}

// GetCustomerCarts returns the customer's paid carts in payment order.
func (s *CartService) GetCustomerCarts(ctx context.Context, customer string) ([]models.Cart, error) {
	return s.Repo.GetPaidCarts(ctx, customer)
}

func (s *CartService) GetAllCarts(ctx context.Context) ([]models.Cart, error) {
	return s.Repo.GetAllCarts(ctx)
}

func (s *CartService) DeleteAllCarts(ctx context.Context) (err error) {
	defer func() { metrics.Observe(metrics.CartOperationsTotal, "delete_all", err) }()

	if err = s.Repo.DeleteAllCarts(ctx); err != nil {
		return err
	}
	s.Producer.Publish(ctx, events.TopicCartEvents, "all", map[string]interface{}{
		"type": "carts_deleted",
	})
	return nil
}
