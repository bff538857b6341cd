package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Obligation represents a recurring or one-off scheduled monetary event that
// has not yet been posted to the ledger. When LoanID is set the obligation
// mirrors the loan's monthly installment.
type Obligation struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	Name             string          `gorm:"not null" json:"name"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"` // unsigned magnitude
	Category         string          `gorm:"not null;index" json:"category"`
	Subcategory      *string         `json:"subcategory"`
	Frequency        string          `gorm:"not null;index" json:"frequency"`
	StartDate        time.Time       `gorm:"type:date;not null" json:"start_date"`
	NextDueDate      time.Time       `gorm:"type:date;not null;index" json:"next_due_date"`
	ConfirmationMode string          `gorm:"default:manual;not null" json:"confirmation_mode"`
	Active           bool            `gorm:"default:true;not null;index" json:"active"`
	LoanID           *uint           `gorm:"index" json:"loan_id"`
	AccountID        *uint           `gorm:"index" json:"account_id"`
	RepeatCount      *int            `json:"repeat_count"`
	RemainingRepeats *int            `json:"remaining_repeats"`
	AppliedToBudget  bool            `gorm:"default:false;not null" json:"applied_to_budget"`
	BudgetMode       *string         `json:"budget_mode"`         // specific | divide, only for YEARLY
	BudgetMonth      *int            `json:"budget_month"`        // 0-11, only for specific mode
	Notes            *string         `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Associations
	Loan    *Loan    `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

// TableName specifies the table name for Obligation
func (Obligation) TableName() string {
	return "obligations"
}

// Recurrence frequency constants
const (
	FrequencyOneTime    = "one_time"
	FrequencyWeekly     = "weekly"
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencySemiannual = "semiannual"
	FrequencyYearly     = "yearly"
	FrequencyRepeat     = "repeat" // fixed number of monthly occurrences
)

// Confirmation mode constants
const (
	ConfirmationManual    = "manual"
	ConfirmationAutomatic = "automatic"
)

// Budget application mode constants
const (
	BudgetModeSpecific = "specific"
	BudgetModeDivide   = "divide"
)

// ValidFrequency reports whether f is a supported recurrence frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyOneTime, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly,
		FrequencySemiannual, FrequencyYearly, FrequencyRepeat:
		return true
	}
	return false
}

// IsDue returns true when the obligation should fire on or before asOf
func (o *Obligation) IsDue(asOf time.Time) bool {
	return o.Active && !o.NextDueDate.After(asOf)
}

// IsAutomatic returns true when the scheduler may materialize the obligation
// without user confirmation
func (o *Obligation) IsAutomatic() bool {
	return o.ConfirmationMode == ConfirmationAutomatic
}

// IsLoanLinked returns true when the obligation mirrors a loan installment
func (o *Obligation) IsLoanLinked() bool {
	return o.LoanID != nil && *o.LoanID != 0
}

// ObligationResponse is the JSON response format for obligations
type ObligationResponse struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	Subcategory      *string         `json:"subcategory,omitempty"`
	Frequency        string          `json:"frequency"`
	StartDate        time.Time       `json:"start_date"`
	NextDueDate      time.Time       `json:"next_due_date"`
	ConfirmationMode string          `json:"confirmation_mode"`
	Active           bool            `json:"active"`
	LoanID           *uint           `json:"loan_id,omitempty"`
	AccountID        *uint           `json:"account_id,omitempty"`
	RemainingRepeats *int            `json:"remaining_repeats,omitempty"`
	AppliedToBudget  bool            `json:"applied_to_budget"`
	BudgetMode       *string         `json:"budget_mode,omitempty"`
	BudgetMonth      *int            `json:"budget_month,omitempty"`
	OverdueDays      int             `json:"overdue_days"`
	Notes            *string         `json:"notes,omitempty"`
}

// ToResponse converts Obligation to ObligationResponse
func (o *Obligation) ToResponse() ObligationResponse {
	resp := ObligationResponse{
		ID:               o.ID,
		Name:             o.Name,
		Amount:           o.Amount,
		Category:         o.Category,
		Subcategory:      o.Subcategory,
		Frequency:        o.Frequency,
		StartDate:        o.StartDate,
		NextDueDate:      o.NextDueDate,
		ConfirmationMode: o.ConfirmationMode,
		Active:           o.Active,
		LoanID:           o.LoanID,
		AccountID:        o.AccountID,
		RemainingRepeats: o.RemainingRepeats,
		AppliedToBudget:  o.AppliedToBudget,
		BudgetMode:       o.BudgetMode,
		BudgetMonth:      o.BudgetMonth,
		Notes:            o.Notes,
	}

	if o.Active && time.Now().After(o.NextDueDate) {
		resp.OverdueDays = int(time.Since(o.NextDueDate).Hours() / 24)
	}

	return resp
}
