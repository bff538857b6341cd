package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sgavilanez/planea-api/internal/models"
	"gorm.io/gorm"
)

// BudgetRepository defines the interface for budget bucket data access
type BudgetRepository interface {
	FindBucketsByYear(ctx context.Context, userID uint, year int) ([]models.BudgetBucket, error)
	AddToBucket(ctx context.Context, userID uint, year, month int, delta decimal.Decimal) error
	CreateContribution(ctx context.Context, contribution *models.BudgetContribution) error
	FindContributions(ctx context.Context, obligationID uint, year int) ([]models.BudgetContribution, error)
	DeleteContributions(ctx context.Context, obligationID uint, year int) error
}

type budgetRepository struct {
	db *gorm.DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) FindBucketsByYear(ctx context.Context, userID uint, year int) ([]models.BudgetBucket, error) {
	var buckets []models.BudgetBucket
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		Order("month ASC").
		Find(&buckets).Error
	return buckets, err
}

// AddToBucket applies a signed delta to one monthly bucket, creating the
// bucket on first contribution.
func (r *budgetRepository) AddToBucket(ctx context.Context, userID uint, year, month int, delta decimal.Decimal) error {
	var bucket models.BudgetBucket
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		First(&bucket).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.BudgetBucket{
			UserID:  userID,
			Year:    year,
			Month:   month,
			Planned: delta,
		}
		return r.db.WithContext(ctx).Create(&bucket).Error
	}
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&models.BudgetBucket{}).
		Where("id = ?", bucket.ID).
		Update("planned", gorm.Expr("planned + ?", delta)).Error
}

func (r *budgetRepository) CreateContribution(ctx context.Context, contribution *models.BudgetContribution) error {
	return r.db.WithContext(ctx).Create(contribution).Error
}

func (r *budgetRepository) FindContributions(ctx context.Context, obligationID uint, year int) ([]models.BudgetContribution, error) {
	var contributions []models.BudgetContribution
	err := r.db.WithContext(ctx).
		Where("obligation_id = ? AND year = ?", obligationID, year).
		Order("month ASC").
		Find(&contributions).Error
	return contributions, err
}

func (r *budgetRepository) DeleteContributions(ctx context.Context, obligationID uint, year int) error {
	return r.db.WithContext(ctx).
		Where("obligation_id = ? AND year = ?", obligationID, year).
		Delete(&models.BudgetContribution{}).Error
}
