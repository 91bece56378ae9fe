package catalog

import (
	"context"
	"fmt"

	"github.com/ezelectronics/backend/internal/apperr"
	"github.com/ezelectronics/backend/internal/events"
	"github.com/ezelectronics/backend/internal/keylock"
	"github.com/ezelectronics/backend/internal/logging"
	"github.com/ezelectronics/backend/internal/metrics"
	"github.com/ezelectronics/backend/internal/models"
	"github.com/ezelectronics/backend/internal/search"
	"github.com/ezelectronics/backend/internal/util"
)

// CatalogService owns product records and every stock mutation. Stock
// changes for one model are serialized on the model key of StockLocks,
// which it shares with the cart workflow's checkout.
type CatalogService struct {
	Repo       *GormRepo
	StockLocks *keylock.Map
	Producer   *events.Producer
	Index      *search.Index
}

func NewCatalogService(repo *GormRepo, stockLocks *keylock.Map, producer *events.Producer, index *search.Index) *CatalogService {
	return &CatalogService{Repo: repo, StockLocks: stockLocks, Producer: producer, Index: index}
}

func validCategory(c models.Category) bool {
	switch c {
	case models.CategorySmartphone, models.CategoryLaptop, models.CategoryAppliance:
		return true
	}
	return false
}

// RegisterProduct adds a new model to the catalog. The arrival date
// defaults to today and may not be in the future.
func (s *CatalogService) RegisterProduct(ctx context.Context, product models.Product) (err error) {
	defer func() { metrics.Observe(metrics.ProductOperationsTotal, "register", err) }()
	l := logging.FromContext(ctx).With("service", "catalog")

	if product.Model == "" {
		return fmt.Errorf("model is required: %w", apperr.ErrValidation)
	}
	if !validCategory(product.Category) {
		return fmt.Errorf("unknown category %q: %w", product.Category, apperr.ErrValidation)
	}
	if product.SellingPrice <= 0 {
		return fmt.Errorf("selling price must be positive: %w", apperr.ErrValidation)
	}
	if product.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", apperr.ErrValidation)
	}
	if product.ArrivalDate == "" {
		product.ArrivalDate = util.Today()
	}
	if !util.ValidDate(product.ArrivalDate) {
		return fmt.Errorf("arrival date %q is not a date: %w", product.ArrivalDate, apperr.ErrValidation)
	}
	if product.ArrivalDate > util.Today() {
		return apperr.ErrDateAfterCurrentDate
	}

	if err = s.Repo.CreateProduct(ctx, &product); err != nil {
		l.Warn("register_product_failed", "model", product.Model, "error", err)
		return err
	}

	metrics.ProductStockGauge.WithLabelValues(product.Model).Set(float64(product.Quantity))
	if idxErr := s.Index.IndexProduct(ctx, product); idxErr != nil {
		l.Error("index_product_failed", "model", product.Model, "error", idxErr)
	}
	s.Producer.Publish(ctx, events.TopicProductEvents, product.Model, map[string]interface{}{
		"type":     "product_registered",
		"model":    product.Model,
		"category": product.Category,
		"quantity": product.Quantity,
	})
	l.Info("register_product_success", "model", product.Model)
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, model string) (*models.Product, error) {
	return s.Repo.GetProduct(ctx, model)
}

func (s *CatalogService) GetProducts(ctx context.Context, category models.Category, model string) ([]models.Product, error) {
	if category != "" && !validCategory(category) {
		return nil, fmt.Errorf("unknown category %q: %w", category, apperr.ErrValidation)
	}
	return s.Repo.GetProducts(ctx, category, model, false)
}

func (s *CatalogService) GetAvailableProducts(ctx context.Context, category models.Category, model string) ([]models.Product, error) {
	if category != "" && !validCategory(category) {
		return nil, fmt.Errorf("unknown category %q: %w", category, apperr.ErrValidation)
	}
	return s.Repo.GetProducts(ctx, category, model, true)
}

// ChangeProductQuantity restocks model by addedQuantity and returns the new
// stock level. changeDate, when given, must not precede the product's
// arrival date nor fall after the current date.
func (s *CatalogService) ChangeProductQuantity(ctx context.Context, model string, addedQuantity int, changeDate string) (newQuantity int, err error) {
	defer func() { metrics.Observe(metrics.ProductOperationsTotal, "restock", err) }()
	l := logging.FromContext(ctx).With("service", "catalog")

	if addedQuantity <= 0 {
		return 0, fmt.Errorf("added quantity must be positive: %w", apperr.ErrValidation)
	}
	if changeDate != "" {
		if !util.ValidDate(changeDate) {
			return 0, fmt.Errorf("change date %q is not a date: %w", changeDate, apperr.ErrValidation)
		}
		if changeDate > util.Today() {
			return 0, apperr.ErrDateAfterCurrentDate
		}
	}

	s.StockLocks.Lock(model)
	defer s.StockLocks.Unlock(model)

	newQuantity, err = s.Repo.ChangeQuantity(ctx, model, addedQuantity, changeDate)
	if err != nil {
		l.Warn("restock_failed", "model", model, "error", err)
		return 0, err
	}

	metrics.ProductStockGauge.WithLabelValues(model).Set(float64(newQuantity))
	s.Producer.Publish(ctx, events.TopicProductEvents, model, map[string]interface{}{
		"type":         "product_restocked",
		"model":        model,
		"added":        addedQuantity,
		"new_quantity": newQuantity,
	})
	l.Info("restock_success", "model", model, "new_quantity", newQuantity)
	return newQuantity, nil
}

// SellProduct records a direct sale of quantity units and returns the new
// stock level. Checkout does not call this; it runs its own all-or-nothing
// validation over every line item first.
func (s *CatalogService) SellProduct(ctx context.Context, model string, quantity int, sellingDate string) (newQuantity int, err error) {
	defer func() { metrics.Observe(metrics.ProductOperationsTotal, "sell", err) }()
	l := logging.FromContext(ctx).With("service", "catalog")

	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", apperr.ErrValidation)
	}
	if sellingDate != "" {
		if !util.ValidDate(sellingDate) {
			return 0, fmt.Errorf("selling date %q is not a date: %w", sellingDate, apperr.ErrValidation)
		}
		if sellingDate > util.Today() {
			return 0, apperr.ErrDateAfterCurrentDate
		}
	}

	s.StockLocks.Lock(model)
	defer s.StockLocks.Unlock(model)

	newQuantity, err = s.Repo.SellProduct(ctx, model, quantity)
	if err != nil {
		l.Warn("sell_failed", "model", model, "quantity", quantity, "error", err)
		return 0, err
	}

	metrics.ProductStockGauge.WithLabelValues(model).Set(float64(newQuantity))
	s.Producer.Publish(ctx, events.TopicProductEvents, model, map[string]interface{}{
		"type":         "product_sold",
		"model":        model,
		"quantity":     quantity,
		"new_quantity": newQuantity,
	})
	l.Info("sell_success", "model", model, "new_quantity", newQuantity)
	return newQuantity, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, model string) (err error) {
	defer func() { metrics.Observe(metrics.ProductOperationsTotal, "delete", err) }()
	l := logging.FromContext(ctx).With("service", "catalog")

	s.StockLocks.Lock(model)
	defer s.StockLocks.Unlock(model)

	if err = s.Repo.DeleteProduct(ctx, model); err != nil {
		l.Warn("delete_product_failed", "model", model, "error", err)
		return err
	}

	metrics.ProductStockGauge.DeleteLabelValues(model)
	if idxErr := s.Index.DeleteProduct(ctx, model); idxErr != nil {
		l.Error("deindex_product_failed", "model", model, "error", idxErr)
	}
	s.Producer.Publish(ctx, events.TopicProductEvents, model, map[string]interface{}{
		"type":  "product_deleted",
		"model": model,
	})
	l.Info("delete_product_success", "model", model)
	return nil
}

func (s *CatalogService) DeleteAllProducts(ctx context.Context) (err error) {
	defer func() { metrics.Observe(metrics.ProductOperationsTotal, "delete_all", err) }()

	if err = s.Repo.DeleteAllProducts(ctx); err != nil {
		return err
	}

	metrics.ProductStockGauge.Reset()
	s.Producer.Publish(ctx, events.TopicProductEvents, "all", map[string]interface{}{
		"type": "products_deleted",
	})
	return nil
}

// SearchProducts queries the elasticsearch mirror. With no index configured
// it reports nothing found rather than failing.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, page, size int) (int64, []models.Product, error) {
	from, limit := util.Calculate(page, size)
	return s.Index.Search(ctx, query, from, limit)
}
