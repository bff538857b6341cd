package repository

import (
	"context"

	"github.com/sgavilanez/planea-api/internal/models"
	"gorm.io/gorm"
)

// LoanRepository defines the interface for loan and installment data access
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByIDWithInstallments(ctx context.Context, id uint) (*models.Loan, error)
	FindByUser(ctx context.Context, userID uint) ([]models.Loan, error)
	Create(ctx context.Context, loan *models.Loan) error
	Update(ctx context.Context, loan *models.Loan) error
	Delete(ctx context.Context, id uint) error
	FindInstallment(ctx context.Context, loanID uint, paymentNumber int) (*models.LoanInstallment, error)
	FindPlannedInstallments(ctx context.Context, loanID uint) ([]models.LoanInstallment, error)
	UpdateInstallment(ctx context.Context, row *models.LoanInstallment) error
	DeleteInstallments(ctx context.Context, loanID uint) error
	DeletePlannedInstallments(ctx context.Context, loanID uint) error
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDWithInstallments(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_number ASC")
		}).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&loans).Error
	return loans, err
}

// Create persists the loan together with its installment rows (gorm cascades
// the association in one insert batch).
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

func (r *loanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Loan{}, id).Error
}

func (r *loanRepository) FindInstallment(ctx context.Context, loanID uint, paymentNumber int) (*models.LoanInstallment, error) {
	var row models.LoanInstallment
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND payment_number = ?", loanID, paymentNumber).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *loanRepository) FindPlannedInstallments(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
	var rows []models.LoanInstallment
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanID, models.InstallmentStatusPlanned).
		Order("payment_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *loanRepository) UpdateInstallment(ctx context.Context, row *models.LoanInstallment) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *loanRepository) DeleteInstallments(ctx context.Context, loanID uint) error {
	return r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&models.LoanInstallment{}).Error
}

// DeletePlannedInstallments removes the unpaid tail of a schedule. Used by the
// early payoff path; paid rows stay for history.
func (r *loanRepository) DeletePlannedInstallments(ctx context.Context, loanID uint) error {
	return r.db.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanID, models.InstallmentStatusPlanned).
		Delete(&models.LoanInstallment{}).Error
}
