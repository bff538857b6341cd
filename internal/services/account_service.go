package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sgavilanez/planea-api/internal/finance"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountService posts ledger entries and keeps the cached account balance in
// sync with them. The balance column is derivable; Recalculate replays the
// ledger when the cache is suspect.
type AccountService struct {
	repos    *repository.Repositories
	db       *gorm.DB
	auditSvc *AuditService
}

func NewAccountService(repos *repository.Repositories, db *gorm.DB, auditSvc *AuditService) *AccountService {
	return &AccountService{repos: repos, db: db, auditSvc: auditSvc}
}

// transaction runs fn inside a database transaction with transaction-scoped
// repositories. Without a database handle (unit tests) fn runs against the
// service's own repositories.
func (s *AccountService) transaction(fn func(repos *repository.Repositories) error) error {
	if s.db == nil {
		return fn(s.repos)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewRepositories(tx))
	})
}

func (s *AccountService) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	account, err := s.repos.Account.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) FindByUser(ctx context.Context, userID uint) ([]models.Account, error) {
	return s.repos.Account.FindByUser(ctx, userID)
}

func (s *AccountService) Create(ctx context.Context, account *models.Account) error {
	if account.Name == "" {
		return fmt.Errorf("nombre de cuenta requerido: %w", ErrValidation)
	}
	if account.Currency == "" {
		account.Currency = "HNL"
	}
	return s.repos.Account.Create(ctx, account)
}

// Post records an entry in the ledger and moves the cached balance of the
// target account by the entry's signed amount. The caller hands in the
// unsigned magnitude; the sign is derived from the category.
func (s *AccountService) Post(ctx context.Context, entry *models.LedgerEntry, magnitude decimal.Decimal) error {
	if magnitude.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("el monto debe ser positivo: %w", ErrValidation)
	}

	entry.Amount = finance.SignedAmount(entry.Category, magnitude)

	return s.transaction(func(repos *repository.Repositories) error {
		return postEntry(ctx, repos, entry)
	})
}

// postEntry is the transaction-scoped posting primitive shared with the
// obligation materializer and the loan service.
func postEntry(ctx context.Context, repos *repository.Repositories, entry *models.LedgerEntry) error {
	if err := repos.Ledger.Create(ctx, entry); err != nil {
		return err
	}
	if entry.AccountID != nil {
		if err := repos.Account.AdjustBalance(ctx, *entry.AccountID, entry.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Revert compensates a posted entry by posting its mirror: same magnitude,
// opposite category, hence opposite sign. The original row stays untouched so
// the ledger remains append-only.
func (s *AccountService) Revert(ctx context.Context, entryID, actorID uint) (*models.LedgerEntry, error) {
	original, err := s.repos.Ledger.FindByID(ctx, entryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if actorID != 0 && original.UserID != actorID {
		return nil, ErrUnauthorized
	}

	mirror := &models.LedgerEntry{
		UserID:       original.UserID,
		AccountID:    original.AccountID,
		ObligationID: original.ObligationID,
		LoanID:       original.LoanID,
		Amount:       original.Amount.Neg(),
		Category:     finance.OppositeCategory(original.Category),
		Subcategory:  original.Subcategory,
		Description:  fmt.Sprintf("Reverso: %s", original.Description),
		EntryType:    models.EntryTypeAdjustment,
		EntryDate:    original.EntryDate,
	}

	if err := s.transaction(func(repos *repository.Repositories) error {
		return postEntry(ctx, repos, mirror)
	}); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, actorID, "UPDATE", "LedgerEntry", original.ID,
			fmt.Sprintf("Reverso de movimiento por %s", original.Amount.String()), "", "")
	}

	return mirror, nil
}

// ReapplyInput carries the editable fields of a posted entry
type ReapplyInput struct {
	Magnitude   *decimal.Decimal
	Category    *string
	Subcategory *string
	Description *string
	EntryDate   *time.Time
}

// Reapply edits a posted entry in place: inside one atomic unit the old
// signed amount is backed out of the cached balance and the new one applied,
// so the row mutates without a compensating pair in the ledger.
func (s *AccountService) Reapply(ctx context.Context, entryID, actorID uint, input ReapplyInput) (*models.LedgerEntry, error) {
	entry, err := s.repos.Ledger.FindByID(ctx, entryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if actorID != 0 && entry.UserID != actorID {
		return nil, ErrUnauthorized
	}

	oldAmount := entry.Amount

	if input.Category != nil {
		entry.Category = *input.Category
	}
	if input.Magnitude != nil {
		if input.Magnitude.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("el monto debe ser positivo: %w", ErrValidation)
		}
		entry.Amount = finance.SignedAmount(entry.Category, *input.Magnitude)
	} else if input.Category != nil {
		entry.Amount = finance.SignedAmount(entry.Category, entry.Amount.Abs())
	}
	if input.Subcategory != nil {
		entry.Subcategory = input.Subcategory
	}
	if input.Description != nil {
		entry.Description = *input.Description
	}
	if input.EntryDate != nil {
		entry.EntryDate = *input.EntryDate
	}

	err = s.transaction(func(repos *repository.Repositories) error {
		if entry.AccountID != nil && !entry.Amount.Equal(oldAmount) {
			if err := repos.Account.AdjustBalance(ctx, *entry.AccountID, entry.Amount.Sub(oldAmount)); err != nil {
				return err
			}
		}
		return repos.Ledger.Update(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Recalculate replaces the cached balance with the sum of all posted entries
// for the account and returns the fresh value.
func (s *AccountService) Recalculate(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.transaction(func(repos *repository.Repositories) error {
		sum, err := repos.Ledger.SumByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		balance = sum
		return repos.Account.SetBalance(ctx, accountID, sum)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Entries lists one page of an account's posted ledger rows.
func (s *AccountService) Entries(ctx context.Context, accountID uint, q *repository.ListQuery) ([]models.LedgerEntry, error) {
	return s.repos.Ledger.FindByAccountID(ctx, accountID, q)
}
