package cart

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

func unpaidCart(tx *gorm.DB, customer string, withItems bool) (*models.Cart, error) {
	q := tx.Where("customer = ? AND paid = ?", customer, false)
	if withItems {
		q = q.Preload("Items")
	}

	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetUnpaidCart returns the customer's current unpaid cart, or nil when
// none exists. Absence is not an error.
func (r *GormRepo) GetUnpaidCart(ctx context.Context, customer string) (*models.Cart, error) {
	return unpaidCart(r.DB.WithContext(ctx), customer, true)
}

// UnpaidCartModels lists the product models in the customer's unpaid cart,
// for lock acquisition before checkout.
func (r *GormRepo) UnpaidCartModels(ctx context.Context, customer string) ([]string, error) {
	cart, err := unpaidCart(r.DB.WithContext(ctx), customer, true)
	if err != nil || cart == nil {
		return nil, err
	}
	out := make([]string, 0, len(cart.Items))
	for _, line := range cart.Items {
		out = append(out, line.Model)
	}
	return out, nil
}

// AddToCart adds one unit of model to the customer's unpaid cart, creating
// the cart when none exists. The stock check, the line upsert and the total
// adjustment commit together or not at all.
func (r *GormRepo) AddToCart(ctx context.Context, customer, model string) (*models.Cart, error) {
	var cartID string
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

		cart, err := unpaidCart(tx, customer, false)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = &models.Cart{Customer: customer}
			if err := tx.Create(cart).Error; err != nil {
				return err
			}
		}
		cartID = cart.ID.String()

		res := tx.Model(&models.CartLineItem{}).
			Where("cart_id = ? AND model = ?", cart.ID, model).
			Update("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			line := models.CartLineItem{
				CartID:   cart.ID,
				Model:    model,
				Quantity: 1,
				Category: product.Category,
				Price:    product.SellingPrice,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("total", gorm.Expr("total + ?", product.SellingPrice)).Error
	})
	if err != nil {
		return nil, err
	}
	return r.reload(ctx, cartID)
}

// RemoveProduct takes one unit of model out of the customer's unpaid cart,
// dropping the line when it reaches zero. The total decreases by the line's
// snapshot price, not the current catalog price.
func (r *GormRepo) RemoveProduct(ctx context.Context, customer, model string) (*models.Cart, error) {
	var cartID string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Product{}).Where("model = ?", model).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.ErrProductNotFound
		}

		cart, err := unpaidCart(tx, customer, false)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperr.ErrCartNotFound
		}
		cartID = cart.ID.String()

		var line models.CartLineItem
		if err := tx.Where("cart_id = ? AND model = ?", cart.ID, model).First(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrProductNotInCart
			}
			return err
		}

		if line.Quantity > 1 {
			if err := tx.Model(&models.CartLineItem{}).
				Where("cart_id = ? AND model = ?", cart.ID, model).
				Update("quantity", gorm.Expr("quantity - 1")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Delete(&models.CartLineItem{}, "cart_id = ? AND model = ?", cart.ID, model).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("total", gorm.Expr("total - ?", line.Price)).Error
	})
	if err != nil {
		return nil, err
	}
	return r.reload(ctx, cartID)
}

// Checkout validates stock for every line item, then decrements every
// product and marks the cart paid. Validation of all lines strictly
// precedes the first stock mutation, so a failing line leaves the catalog
// and the cart untouched.
func (r *GormRepo) Checkout(ctx context.Context, customer, paymentDate string) (*models.Cart, error) {
	var out *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := unpaidCart(tx, customer, true)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperr.ErrCartNotFound
		}
		if len(cart.Items) == 0 {
			return apperr.ErrEmptyCart
		}

		for _, line := range cart.Items {
			var product models.Product
			if err := tx.Where("model = ?", line.Model).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.ErrProductNotFound
				}
				return err
			}
			if product.Quantity == 0 {
				return apperr.ErrEmptyProductStock
			}
			if product.Quantity < line.Quantity {
				return apperr.ErrLowProductStock
			}
		}

		for _, line := range cart.Items {
			if err := tx.Model(&models.Product{}).Where("model = ?", line.Model).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity)).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Updates(map[string]interface{}{"paid": true, "payment_date": paymentDate}).Error; err != nil {
			return err
		}

		cart.Paid = true
		cart.PaymentDate = paymentDate
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear removes every line item and resets the total; the cart header stays.
func (r *GormRepo) Clear(ctx context.Context, customer string) (*models.Cart, error) {
	var cartID string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := unpaidCart(tx, customer, false)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperr.ErrCartNotFound
		}
		cartID = cart.ID.String()

		if err := tx.Delete(&models.CartLineItem{}, "cart_id = ?", cart.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).Update("total", 0).Error
	})
	if err != nil {
		return nil, err
	}
	return r.reload(ctx, cartID)
}

// GetPaidCarts lists the customer's checkout history in payment order.
func (r *GormRepo) GetPaidCarts(ctx context.Context, customer string) ([]models.Cart, error) {
	var carts []models.Cart
	if err := r.DB.WithContext(ctx).Preload("Items").
		Where("customer = ? AND paid = ?", customer, true).
		Order("payment_date ASC").Find(&carts).Error; err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *GormRepo) GetAllCarts(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	if err := r.DB.WithContext(ctx).Preload("Items").Find(&carts).Error; err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *GormRepo) DeleteAllCarts(ctx context.Context) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CartLineItem{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Cart{}).Error
	})
}

func (r *GormRepo) reload(ctx context.Context, cartID string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", cartID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}
