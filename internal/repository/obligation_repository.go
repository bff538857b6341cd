package repository

import (
	"context"
	"time"

	"github.com/sgavilanez/planea-api/internal/models"
	"gorm.io/gorm"
)

// ObligationRepository defines the interface for obligation data access
type ObligationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Obligation, error)
	FindByUser(ctx context.Context, userID uint, category string, activeOnly bool) ([]models.Obligation, error)
	FindByLoan(ctx context.Context, loanID uint) (*models.Obligation, error)
	Create(ctx context.Context, obligation *models.Obligation) error
	Update(ctx context.Context, obligation *models.Obligation) error
	Delete(ctx context.Context, id uint) error
	DeleteByLoan(ctx context.Context, loanID uint) error
	FindDue(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error)
	FindDueWithin(ctx context.Context, userID uint, until time.Time) ([]models.Obligation, error)
}

type obligationRepository struct {
	db *gorm.DB
}

// NewObligationRepository creates a new obligation repository
func NewObligationRepository(db *gorm.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

func (r *obligationRepository) FindByID(ctx context.Context, id uint) (*models.Obligation, error) {
	var obligation models.Obligation
	err := r.db.WithContext(ctx).First(&obligation, id).Error
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *obligationRepository) FindByUser(ctx context.Context, userID uint, category string, activeOnly bool) ([]models.Obligation, error) {
	var obligations []models.Obligation
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if activeOnly {
		db = db.Where("active = ?", true)
	}
	err := db.Order("next_due_date ASC").Find(&obligations).Error
	return obligations, err
}

func (r *obligationRepository) FindByLoan(ctx context.Context, loanID uint) (*models.Obligation, error) {
	var obligation models.Obligation
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		First(&obligation).Error
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *obligationRepository) Create(ctx context.Context, obligation *models.Obligation) error {
	return r.db.WithContext(ctx).Create(obligation).Error
}

func (r *obligationRepository) Update(ctx context.Context, obligation *models.Obligation) error {
	return r.db.WithContext(ctx).Save(obligation).Error
}

func (r *obligationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Obligation{}, id).Error
}

func (r *obligationRepository) DeleteByLoan(ctx context.Context, loanID uint) error {
	return r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&models.Obligation{}).Error
}

// FindDue returns active obligations whose next due date is on or before
// asOf. The scheduler passes automaticOnly=true so manual obligations wait
// for user confirmation.
func (r *obligationRepository) FindDue(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
	var obligations []models.Obligation
	db := r.db.WithContext(ctx).
		Where("active = ? AND next_due_date <= ?", true, asOf)
	if automaticOnly {
		db = db.Where("confirmation_mode = ?", models.ConfirmationAutomatic)
	}
	err := db.Order("next_due_date ASC").Find(&obligations).Error
	return obligations, err
}

func (r *obligationRepository) FindDueWithin(ctx context.Context, userID uint, until time.Time) ([]models.Obligation, error) {
	var obligations []models.Obligation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND next_due_date <= ?", userID, true, until).
		Order("next_due_date ASC").
		Find(&obligations).Error
	return obligations, err
}
