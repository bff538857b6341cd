package services

import (
	"context"
	"testing"
	"time"

	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (m *mockLedgerRepo) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	return m.mockFindByID(ctx, id)
}

func TestAccountService_Post_SignConvention(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	var posted *models.LedgerEntry
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		posted = e
		return nil
	}

	var delta decimal.Decimal
	accountRepo.mockAdjustBalance = func(ctx context.Context, id uint, d decimal.Decimal) error {
		delta = d
		return nil
	}

	accountID := uint(2)
	err := service.Post(context.Background(), &models.LedgerEntry{
		UserID:    7,
		AccountID: &accountID,
		Category:  models.CategoryIncome,
		EntryType: models.EntryTypeIncome,
		EntryDate: time.Now(),
	}, decimal.RequireFromString("1500"))

	require.NoError(t, err)
	assert.Equal(t, "1500", posted.Amount.String())
	assert.Equal(t, "1500", delta.String())

	err = service.Post(context.Background(), &models.LedgerEntry{
		UserID:    7,
		AccountID: &accountID,
		Category:  "comida",
		EntryType: models.EntryTypeExpense,
		EntryDate: time.Now(),
	}, decimal.RequireFromString("35.50"))

	require.NoError(t, err)
	assert.Equal(t, "-35.5", posted.Amount.String())
	assert.Equal(t, "-35.5", delta.String())
}

func TestAccountService_Post_NoAccountIsNoOpOnBalance(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	adjusted := false
	accountRepo.mockAdjustBalance = func(ctx context.Context, id uint, d decimal.Decimal) error {
		adjusted = true
		return nil
	}

	err := service.Post(context.Background(), &models.LedgerEntry{
		UserID:    7,
		Category:  "comida",
		EntryType: models.EntryTypeExpense,
		EntryDate: time.Now(),
	}, decimal.RequireFromString("10"))

	require.NoError(t, err)
	assert.False(t, adjusted)
}

func TestAccountService_Post_RejectsNonPositive(t *testing.T) {
	service := NewAccountService(&repository.Repositories{}, nil, nil)

	err := service.Post(context.Background(), &models.LedgerEntry{Category: "comida"}, decimal.Zero)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAccountService_Revert_FlipsCategoryNotSign(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	accountID := uint(2)
	ledgerRepo.mockFindByID = func(ctx context.Context, id uint) (*models.LedgerEntry, error) {
		return &models.LedgerEntry{
			ID:          id,
			UserID:      7,
			AccountID:   &accountID,
			Amount:      decimal.RequireFromString("-450"),
			Category:    "vivienda",
			Description: "Renta",
			EntryType:   models.EntryTypeExpense,
			EntryDate:   time.Now(),
		}, nil
	}

	var posted *models.LedgerEntry
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		posted = e
		return nil
	}

	var delta decimal.Decimal
	accountRepo.mockAdjustBalance = func(ctx context.Context, id uint, d decimal.Decimal) error {
		delta = d
		return nil
	}

	mirror, err := service.Revert(context.Background(), 10, 7)

	require.NoError(t, err)
	require.NotNil(t, posted)
	assert.Equal(t, "450", mirror.Amount.String())
	assert.Equal(t, models.CategoryIncome, mirror.Category)
	assert.Equal(t, models.EntryTypeAdjustment, mirror.EntryType)
	assert.Equal(t, "450", delta.String())
}

func TestAccountService_Reapply_MovesBalanceByDelta(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	accountID := uint(2)
	ledgerRepo.mockFindByID = func(ctx context.Context, id uint) (*models.LedgerEntry, error) {
		return &models.LedgerEntry{
			ID:        id,
			UserID:    7,
			AccountID: &accountID,
			Amount:    decimal.RequireFromString("-450"),
			Category:  "vivienda",
			EntryType: models.EntryTypeExpense,
			EntryDate: time.Now(),
		}, nil
	}

	var saved *models.LedgerEntry
	ledgerRepo.mockUpdate = func(ctx context.Context, e *models.LedgerEntry) error {
		saved = e
		return nil
	}

	var delta decimal.Decimal
	accountRepo.mockAdjustBalance = func(ctx context.Context, id uint, d decimal.Decimal) error {
		delta = d
		return nil
	}

	newAmount := decimal.RequireFromString("500")
	entry, err := service.Reapply(context.Background(), 10, 7, ReapplyInput{Magnitude: &newAmount})

	require.NoError(t, err)
	require.NotNil(t, saved)
	// -450 became -500: the cached balance moves by the difference only
	assert.Equal(t, "-500", entry.Amount.String())
	assert.Equal(t, "-50", delta.String())
}

func TestAccountService_Reapply_CategoryFlipsSign(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	accountID := uint(2)
	ledgerRepo.mockFindByID = func(ctx context.Context, id uint) (*models.LedgerEntry, error) {
		return &models.LedgerEntry{
			ID:        id,
			UserID:    7,
			AccountID: &accountID,
			Amount:    decimal.RequireFromString("-300"),
			Category:  "otros",
			EntryType: models.EntryTypeExpense,
			EntryDate: time.Now(),
		}, nil
	}

	var delta decimal.Decimal
	accountRepo.mockAdjustBalance = func(ctx context.Context, id uint, d decimal.Decimal) error {
		delta = d
		return nil
	}

	income := models.CategoryIncome
	entry, err := service.Reapply(context.Background(), 10, 7, ReapplyInput{Category: &income})

	require.NoError(t, err)
	assert.Equal(t, "300", entry.Amount.String())
	assert.Equal(t, "600", delta.String())
}

func TestAccountService_Reapply_OwnershipEnforced(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo}
	service := NewAccountService(repos, nil, nil)

	ledgerRepo.mockFindByID = func(ctx context.Context, id uint) (*models.LedgerEntry, error) {
		return &models.LedgerEntry{ID: id, UserID: 7}, nil
	}

	_, err := service.Reapply(context.Background(), 10, 99, ReapplyInput{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAccountService_Recalculate(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{}
	accountRepo := &mockAccountRepo{}
	repos := &repository.Repositories{Ledger: ledgerRepo, Account: accountRepo}
	service := NewAccountService(repos, nil, nil)

	ledgerRepo.mockSumByAccount = func(ctx context.Context, accountID uint) (decimal.Decimal, error) {
		return decimal.RequireFromString("1234.56"), nil
	}

	var set decimal.Decimal
	accountRepo.mockSetBalance = func(ctx context.Context, id uint, balance decimal.Decimal) error {
		set = balance
		return nil
	}

	balance, err := service.Recalculate(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, "1234.56", balance.String())
	assert.Equal(t, "1234.56", set.String())
}
