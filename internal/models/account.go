package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a money account whose balance is an aggregate of posted
// ledger entries. The balance column is a cache, not the source of truth;
// recalculation replays the ledger.
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Name      string          `gorm:"not null" json:"name"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	Currency  string          `gorm:"size:3;default:HNL" json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
