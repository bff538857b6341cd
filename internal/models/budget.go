package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetBucket holds the planned total for one calendar month of one year.
// Month is 0-11 to match the obligation's budget_month field.
type BudgetBucket struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_budget_user_year_month" json:"user_id"`
	Year      int             `gorm:"not null;uniqueIndex:idx_budget_user_year_month" json:"year"`
	Month     int             `gorm:"not null;uniqueIndex:idx_budget_user_year_month" json:"month"` // 0-11
	Planned   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"planned"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for BudgetBucket
func (BudgetBucket) TableName() string {
	return "budget_buckets"
}

// BudgetContribution marks that an obligation contributed an amount to one
// monthly bucket. The rows double as the legacy inference source when an
// obligation's stored application mode is missing.
type BudgetContribution struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ObligationID uint            `gorm:"not null;index" json:"obligation_id"`
	UserID       uint            `gorm:"not null;index" json:"user_id"`
	Year         int             `gorm:"not null;index" json:"year"`
	Month        int             `gorm:"not null" json:"month"` // 0-11
	Amount       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`

	// Associations
	Obligation Obligation `gorm:"foreignKey:ObligationID" json:"-"`
}

// TableName specifies the table name for BudgetContribution
func (BudgetContribution) TableName() string {
	return "budget_contributions"
}
