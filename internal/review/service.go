// Package review enforces the one-review-per-user-per-product rule on top
// of the review store.
package review

import (
	"context"
	"fmt"

	"github.com/ezelectronics/backend/internal/apperr"
	"github.com/ezelectronics/backend/internal/events"
	"github.com/ezelectronics/backend/internal/logging"
	"github.com/ezelectronics/backend/internal/metrics"
	"github.com/ezelectronics/backend/internal/models"
	"github.com/ezelectronics/backend/internal/util"
)

type ReviewService struct {
	Repo     *GormRepo
	Producer *events.Producer
}

func NewReviewService(repo *GormRepo, producer *events.Producer) *ReviewService {
	return &ReviewService{Repo: repo, Producer: producer}
}

// AddReview records user's review of model, dated at the current server
// date. Score bounds are re-checked here rather than trusted to the
// boundary validator.
func (s *ReviewService) AddReview(ctx context.Context, model string, user models.User, score int, comment string) (err error) {
	defer func() { metrics.Observe(metrics.ReviewOperationsTotal, "add", err) }()
	l := logging.FromContext(ctx).With("service", "review")

	if model == "" {
		return fmt.Errorf("model is required: %w", apperr.ErrValidation)
	}
	if score < 1 || score > 5 {
		return fmt.Errorf("score must be between 1 and 5: %w", apperr.ErrValidation)
	}

	review := models.ProductReview{
		Model:   model,
		User:    user.Username,
		Score:   score,
		Date:    util.Today(),
		Comment: comment,
	}
	if err = s.Repo.Create(ctx, &review); err != nil {
		l.Warn("add_review_failed", "model", model, "user", user.Username, "error", err)
		return err
	}

	s.Producer.Publish(ctx, events.TopicReviewEvents, model, map[string]interface{}{
		"type":  "review_added",
		"model": model,
		"user":  user.Username,
		"score": score,
	})
	l.Info("add_review_success", "model", model, "user", user.Username)
	return nil
}

// GetProductReviews returns all reviews of model, possibly empty.
func (s *ReviewService) GetProductReviews(ctx context.Context, model string) ([]models.ProductReview, error) {
	return s.Repo.ListForModel(ctx, model)
}

// DeleteReview removes user's own review of model.
func (s *ReviewService) DeleteReview(ctx context.Context, model string, user models.User) (err error) {
	defer func() { metrics.Observe(metrics.ReviewOperationsTotal, "delete", err) }()
	l := logging.FromContext(ctx).With("service", "review")

	if err = s.Repo.Delete(ctx, model, user.Username); err != nil {
		l.Warn("delete_review_failed", "model", model, "user", user.Username, "error", err)
		return err
	}

	s.Producer.Publish(ctx, events.TopicReviewEvents, model, map[string]interface{}{
		"type":  "review_deleted",
		"model": model,
		"user":  user.Username,
	})
	l.Info("delete_review_success", "model", model, "user", user.Username)
	return nil
}

func (s *ReviewService) DeleteReviewsOfProduct(ctx context.Context, model string) (err error) {
	defer func() { metrics.Observe(metrics.ReviewOperationsTotal, "delete_of_product", err) }()

	if err = s.Repo.DeleteForModel(ctx, model); err != nil {
		return err
	}
	s.Producer.Publish(ctx, events.TopicReviewEvents, model, map[string]interface{}{
		"type":  "reviews_cleared",
		"model": model,
	})
	return nil
}

func (s *ReviewService) DeleteAllReviews(ctx context.Context) (err error) {
	defer func() { metrics.Observe(metrics.ReviewOperationsTotal, "delete_all", err) }()

	if err = s.Repo.DeleteAll(ctx); err != nil {
		return err
	}
	s.Producer.Publish(ctx, events.TopicReviewEvents, "all", map[string]interface{}{
		"type": "reviews_cleared",
	})
	return nil
}
