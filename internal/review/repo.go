package review

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

func productExists(tx *gorm.DB, model string) error {
	var count int64
	if err := tx.Model(&models.Product{}).Where("model = ?", model).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.ErrProductNotFound
	}
	return nil
}

// Create inserts the review after checking the product exists and the user
// has not reviewed it yet; the checks and the insert share one transaction.
func (r *GormRepo) Create(ctx context.Context, review *models.ProductReview) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := productExists(tx, review.Model); err != nil {
			return err
		}

		var existing models.ProductReview
		err := tx.Where("model = ? AND \"user\" = ?", review.Model, review.User).First(&existing).Error
		if err == nil {
			return apperr.ErrExistingReview
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(review).Error
	})
}

func (r *GormRepo) ListForModel(ctx context.Context, model string) ([]models.ProductReview, error) {
	if err := productExists(r.DB.WithContext(ctx), model); err != nil {
		return nil, err
	}

	var reviews []models.ProductReview
	if err := r.DB.WithContext(ctx).Where("model = ?", model).Order("date ASC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

// Delete removes exactly the (model, user) review.
func (r *GormRepo) Delete(ctx context.Context, model, user string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := productExists(tx, model); err != nil {
			return err
		}

		res := tx.Delete(&models.ProductReview{}, "model = ? AND \"user\" = ?", model, user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNoReviewProduct
		}
		return nil
	})
}

func (r *GormRepo) DeleteForModel(ctx context.Context, model string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := productExists(tx, model); err != nil {
			return err
		}
		return tx.Delete(&models.ProductReview{}, "model = ?", model).Error
	})
}

func (r *GormRepo) DeleteAll(ctx context.Context) error {
	return r.DB.WithContext(ctx).Where("1 = 1").Delete(&models.ProductReview{}).Error
}
