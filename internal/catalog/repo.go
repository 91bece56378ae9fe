package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ezelectronics/backend/internal/apperr"
	"github.com/ezelectronics/backend/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) GetProduct(ctx context.Context, model string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("model = ?", model).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// GetProducts filters by category and/or model. A model filter that matches
// nothing is an error, so callers can tell an unknown model from an empty
// category.
func (r *GormRepo) GetProducts(ctx context.Context, category models.Category, model string, availableOnly bool) ([]models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if model != "" {
		q = q.Where("model = ?", model)
	}
	if availableOnly {
		q = q.Where("quantity > 0")
	}

	var items []models.Product
	if err := q.Order("model ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	if model != "" && len(items) == 0 {
		var count int64
		if err := r.DB.WithContext(ctx).Model(&models.Product{}).Where("model = ?", model).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperr.ErrProductNotFound
		}
	}
	return items, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Product{}).Where("model = ?", product.Model).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.ErrProductAlreadyExists
		}
		return tx.Create(product).Error
	})
}

// ChangeQuantity is an additive restock; the new quantity is returned.
func (r *GormRepo) ChangeQuantity(ctx context.Context, model string, addedQuantity int, changeDate string) (int, error) {
	var newQuantity int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Where("model = ?", model).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrProductNotFound
			}
			return err
		}
		if changeDate != "" && changeDate < product.ArrivalDate {
			return apperr.ErrChangeDateBeforeArrivalDate
		}

		newQuantity = product.Quantity + addedQuantity
		return tx.Model(&product).Update("quantity", newQuantity).Error
	})
	if err != nil {
		return 0, err
	}
	return newQuantity, nil
}

// SellProduct decrements stock by quantity after the stock guards pass.
func (r *GormRepo) SellProduct(ctx context.Context, model string, quantity int) (int, error) {
	var newQuantity int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Where("model = ?", model).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrProductNotFound
			}
			return err
		}
		if product.Quantity == 0 {
			return apperr.ErrEmptyProductStock
		}
		if quantity > product.Quantity {
			return apperr.ErrLowProductStock
		}

		newQuantity = product.Quantity - quantity
		return tx.Model(&product).Update("quantity", newQuantity).Error
	})
	if err != nil {
		return 0, err
	}
	return newQuantity, nil
}

// DeleteProduct removes the product, its reviews and its line items in
// unpaid carts (adjusting those carts' totals). Paid carts keep their
// snapshot lines as historical record.
func (r *GormRepo) DeleteProduct(ctx context.Context, model string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Product{}, "model = ?", model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrProductNotFound
		}

		if err := tx.Delete(&models.ProductReview{}, "model = ?", model).Error; err != nil {
			return err
		}
		return removeUnpaidLines(tx, model)
	})
}

func (r *GormRepo) DeleteAllProducts(ctx context.Context) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.ProductReview{}).Error; err != nil {
			return err
		}
		return removeUnpaidLines(tx, "")
	})
}

// removeUnpaidLines drops line items referencing model (every model when
// empty) from unpaid carts and keeps cart totals equal to the sum of the
// remaining lines.
func removeUnpaidLines(tx *gorm.DB, model string) error {
	unpaid := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.Cart{}).Select("id").Where("paid = ?", false)

	q := tx.Where("cart_id IN (?)", unpaid)
	if model != "" {
		q = q.Where("model = ?", model)
	}

	var lines []models.CartLineItem
	if err := q.Find(&lines).Error; err != nil {
		return err
	}

	for _, line := range lines {
		delta := float64(line.Quantity) * line.Price
		if err := tx.Model(&models.Cart{}).Where("id = ?", line.CartID).
			Update("total", gorm.Expr("total - ?", delta)).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.CartLineItem{}, "cart_id = ? AND model = ?", line.CartID, line.Model).Error; err != nil {
			return err
		}
	}
	return nil
}
