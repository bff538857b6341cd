package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan represents an installment loan tracked for a user
type Loan struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	Name             string          `gorm:"not null" json:"name"`
	Principal        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal"`
	AnnualRate       decimal.Decimal `gorm:"type:decimal(8,6);not null" json:"annual_rate"` // decimal fraction, e.g. 0.05
	DurationMonths   int             `gorm:"not null" json:"duration_months"`
	RemainingMonths  int             `gorm:"not null" json:"remaining_months"`
	CurrentBalance   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"current_balance"`
	MonthlyPayment   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"monthly_payment"`
	Status           string          `gorm:"default:active;not null;index" json:"status"`
	FirstPaymentDate time.Time       `gorm:"type:date;not null" json:"first_payment_date"`
	AccountID        *uint           `gorm:"index" json:"account_id"`
	Category         string          `gorm:"default:prestamo" json:"category"`
	Notes            *string         `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Associations
	Account      *Account          `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Installments []LoanInstallment `gorm:"foreignKey:LoanID" json:"installments,omitempty"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// Loan status constants
const (
	LoanStatusActive  = "active"
	LoanStatusPaidOff = "paid_off"
)

// IsPaidOff returns true when the loan reached its terminal state
func (l *Loan) IsPaidOff() bool {
	return l.Status == LoanStatusPaidOff
}

// MayRecordPayment returns true if the loan can still accept payments
func (l *Loan) MayRecordPayment() bool {
	return l.Status == LoanStatusActive
}

// MayPayoff returns true if the loan can be paid off early
func (l *Loan) MayPayoff() bool {
	return l.Status == LoanStatusActive && l.CurrentBalance.GreaterThan(decimal.Zero)
}

// LoanInstallment is one row of a loan's amortization schedule
type LoanInstallment struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	LoanID                uint             `gorm:"not null;index" json:"loan_id"`
	PaymentNumber         int              `gorm:"not null;index" json:"payment_number"`
	DueDate               time.Time        `gorm:"type:date;not null;index" json:"due_date"`
	ScheduledAmount       decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"scheduled_amount"`
	PrincipalPortion      decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"principal_portion"`
	InterestPortion       decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"interest_portion"`
	RemainingBalanceAfter decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"remaining_balance_after"`
	Status                string           `gorm:"default:planned;not null;index" json:"status"`
	PaidAmount            *decimal.Decimal `gorm:"type:decimal(15,2)" json:"paid_amount"`
	PaidDate              *time.Time       `gorm:"type:date" json:"paid_date"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`

	// Associations
	Loan Loan `gorm:"foreignKey:LoanID" json:"-"`
}

// TableName specifies the table name for LoanInstallment
func (LoanInstallment) TableName() string {
	return "loan_installments"
}

// Installment status constants
const (
	InstallmentStatusPlanned = "planned"
	InstallmentStatusPaid    = "paid"
	InstallmentStatusPartial = "partial"
)

// MayPay returns true if the installment can still be paid
func (i *LoanInstallment) MayPay() bool {
	return i.Status == InstallmentStatusPlanned || i.Status == InstallmentStatusPartial
}

// LoanResponse is the JSON response format for loans
type LoanResponse struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Principal        decimal.Decimal `json:"principal"`
	AnnualRate       decimal.Decimal `json:"annual_rate"`
	DurationMonths   int             `json:"duration_months"`
	RemainingMonths  int             `json:"remaining_months"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment"`
	Status           string          `json:"status"`
	FirstPaymentDate time.Time       `json:"first_payment_date"`
	Category         string          `json:"category"`
	Notes            *string         `json:"notes,omitempty"`
	PaidInstallments int             `json:"paid_installments"`
	NextDueDate      *time.Time      `json:"next_due_date,omitempty"`
}

// ToResponse converts Loan to LoanResponse
func (l *Loan) ToResponse() LoanResponse {
	resp := LoanResponse{
		ID:               l.ID,
		Name:             l.Name,
		Principal:        l.Principal,
		AnnualRate:       l.AnnualRate,
		DurationMonths:   l.DurationMonths,
		RemainingMonths:  l.RemainingMonths,
		CurrentBalance:   l.CurrentBalance,
		MonthlyPayment:   l.MonthlyPayment,
		Status:           l.Status,
		FirstPaymentDate: l.FirstPaymentDate,
		Category:         l.Category,
		Notes:            l.Notes,
	}

	for i := range l.Installments {
		row := &l.Installments[i]
		if row.Status == InstallmentStatusPaid {
			resp.PaidInstallments++
			continue
		}
		if resp.NextDueDate == nil || row.DueDate.Before(*resp.NextDueDate) {
			due := row.DueDate
			resp.NextDueDate = &due
		}
	}

	return resp
}
