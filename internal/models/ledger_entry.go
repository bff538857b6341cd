package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents a posted financial transaction. Amount is signed:
// positive for income, negative for everything else.
type LedgerEntry struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"not null;index" json:"user_id"`
	AccountID        *uint            `gorm:"index" json:"account_id,omitempty"`
	ObligationID     *uint            `gorm:"index" json:"obligation_id,omitempty"`
	LoanID           *uint            `gorm:"index" json:"loan_id,omitempty"`
	Amount           decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Category         string           `gorm:"not null;index" json:"category"`
	Subcategory      *string          `json:"subcategory,omitempty"`
	Description      string           `gorm:"not null" json:"description"`
	EntryType        string           `gorm:"not null;index" json:"entry_type"`
	EntryDate        time.Time        `gorm:"type:date;not null;index" json:"entry_date"`
	PrincipalPortion *decimal.Decimal `gorm:"type:decimal(15,2)" json:"principal_portion,omitempty"`
	InterestPortion  *decimal.Decimal `gorm:"type:decimal(15,2)" json:"interest_portion,omitempty"`
	OccurrenceKey    *string          `gorm:"size:64;uniqueIndex" json:"-"` // obligation id + due date, guards double materialization
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Associations
	Account    *Account    `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Obligation *Obligation `gorm:"foreignKey:ObligationID" json:"-"`
	Loan       *Loan       `gorm:"foreignKey:LoanID" json:"-"`
}

// TableName specifies the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Entry type constants
const (
	EntryTypeIncome      = "income"       // Posted income (credit)
	EntryTypeExpense     = "expense"      // Posted expense (debit)
	EntryTypeLoanPayment = "loan_payment" // Installment payment with principal/interest breakdown
	EntryTypeAdjustment  = "adjustment"   // Manual adjustment or reversal
)

// Category constants. Only income is posted with a positive sign.
const (
	CategoryIncome = "ingreso"
)
