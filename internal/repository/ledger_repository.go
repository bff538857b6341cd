package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sgavilanez/planea-api/internal/models"
	"gorm.io/gorm"
)

// LedgerRepository defines the interface for ledger entry data access
type LedgerRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) error
	Update(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error)
	FindByAccountID(ctx context.Context, accountID uint, q *ListQuery) ([]models.LedgerEntry, error)
	FindByObligationID(ctx context.Context, obligationID uint) ([]models.LedgerEntry, error)
	SumByAccount(ctx context.Context, accountID uint) (decimal.Decimal, error)
	ExistsOccurrence(ctx context.Context, occurrenceKey string) (bool, error)
	ExistsSameDay(ctx context.Context, userID uint, category string, subcategory *string, amount decimal.Decimal, day time.Time) (bool, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) Update(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *ledgerRepository) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByAccountID lists an account's entries. A nil query returns the whole
// ledger in posting order, for callers that replay it.
func (r *ledgerRepository) FindByAccountID(ctx context.Context, accountID uint, q *ListQuery) ([]models.LedgerEntry, error) {
	db := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if q != nil {
		db = db.Order(q.OrderClause("entry_date", "created_at", "amount")).
			Limit(q.PerPage).
			Offset(q.Offset())
	} else {
		db = db.Order("entry_date ASC, created_at ASC")
	}

	var entries []models.LedgerEntry
	err := db.Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) FindByObligationID(ctx context.Context, obligationID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("entry_date ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

// SumByAccount replays every posted entry for the account. Used by the
// balance recalculation path, not by hot-path postings.
func (r *ledgerRepository) SumByAccount(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var result struct {
		Balance decimal.Decimal
	}

	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) as balance").
		Where("account_id = ?", accountID).
		Scan(&result).Error

	return result.Balance, err
}

// ExistsOccurrence checks the explicit idempotency key written by the
// materializer (obligation id + due date).
func (r *ledgerRepository) ExistsOccurrence(ctx context.Context, occurrenceKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("occurrence_key = ?", occurrenceKey).
		Count(&count).Error
	return count > 0, err
}

// ExistsSameDay is the legacy duplicate guard: same user, category,
// subcategory and signed amount within one calendar day. Best-effort, kept
// for entries created outside the materializer.
func (r *ledgerRepository) ExistsSameDay(ctx context.Context, userID uint, category string, subcategory *string, amount decimal.Decimal, day time.Time) (bool, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	db := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ? AND category = ? AND amount = ?", userID, category, amount).
		Where("entry_date >= ? AND entry_date < ?", from, to)

	if subcategory != nil {
		db = db.Where("subcategory = ?", *subcategory)
	} else {
		db = db.Where("subcategory IS NULL")
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}
