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
	"gorm.io/gorm"
)

type mockLoanRepo struct {
	repository.LoanRepository
	mockFindByID                  func(ctx context.Context, id uint) (*models.Loan, error)
	mockFindByIDWithInstallments  func(ctx context.Context, id uint) (*models.Loan, error)
	mockCreate                    func(ctx context.Context, loan *models.Loan) error
	mockUpdate                    func(ctx context.Context, loan *models.Loan) error
	mockDelete                    func(ctx context.Context, id uint) error
	mockFindInstallment           func(ctx context.Context, loanID uint, paymentNumber int) (*models.LoanInstallment, error)
	mockFindPlannedInstallments   func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error)
	mockUpdateInstallment         func(ctx context.Context, row *models.LoanInstallment) error
	mockDeleteInstallments        func(ctx context.Context, loanID uint) error
	mockDeletePlannedInstallments func(ctx context.Context, loanID uint) error
}

func (m *mockLoanRepo) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockLoanRepo) FindByIDWithInstallments(ctx context.Context, id uint) (*models.Loan, error) {
	return m.mockFindByIDWithInstallments(ctx, id)
}

func (m *mockLoanRepo) Create(ctx context.Context, loan *models.Loan) error {
	return m.mockCreate(ctx, loan)
}

func (m *mockLoanRepo) Update(ctx context.Context, loan *models.Loan) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, loan)
	}
	return nil
}

func (m *mockLoanRepo) Delete(ctx context.Context, id uint) error {
	return m.mockDelete(ctx, id)
}

func (m *mockLoanRepo) FindInstallment(ctx context.Context, loanID uint, paymentNumber int) (*models.LoanInstallment, error) {
	return m.mockFindInstallment(ctx, loanID, paymentNumber)
}

func (m *mockLoanRepo) FindPlannedInstallments(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
	return m.mockFindPlannedInstallments(ctx, loanID)
}

func (m *mockLoanRepo) UpdateInstallment(ctx context.Context, row *models.LoanInstallment) error {
	if m.mockUpdateInstallment != nil {
		return m.mockUpdateInstallment(ctx, row)
	}
	return nil
}

func (m *mockLoanRepo) DeleteInstallments(ctx context.Context, loanID uint) error {
	if m.mockDeleteInstallments != nil {
		return m.mockDeleteInstallments(ctx, loanID)
	}
	return nil
}

func (m *mockLoanRepo) DeletePlannedInstallments(ctx context.Context, loanID uint) error {
	if m.mockDeletePlannedInstallments != nil {
		return m.mockDeletePlannedInstallments(ctx, loanID)
	}
	return nil
}

type mockObligationRepo struct {
	repository.ObligationRepository
	mockFindByID     func(ctx context.Context, id uint) (*models.Obligation, error)
	mockFindByLoan   func(ctx context.Context, loanID uint) (*models.Obligation, error)
	mockCreate       func(ctx context.Context, obligation *models.Obligation) error
	mockUpdate       func(ctx context.Context, obligation *models.Obligation) error
	mockDelete       func(ctx context.Context, id uint) error
	mockDeleteByLoan func(ctx context.Context, loanID uint) error
	mockFindDue      func(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error)
}

func (m *mockObligationRepo) FindByID(ctx context.Context, id uint) (*models.Obligation, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockObligationRepo) FindByLoan(ctx context.Context, loanID uint) (*models.Obligation, error) {
	if m.mockFindByLoan != nil {
		return m.mockFindByLoan(ctx, loanID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockObligationRepo) Create(ctx context.Context, obligation *models.Obligation) error {
	return m.mockCreate(ctx, obligation)
}

func (m *mockObligationRepo) Update(ctx context.Context, obligation *models.Obligation) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, obligation)
	}
	return nil
}

func (m *mockObligationRepo) Delete(ctx context.Context, id uint) error {
	return m.mockDelete(ctx, id)
}

func (m *mockObligationRepo) DeleteByLoan(ctx context.Context, loanID uint) error {
	if m.mockDeleteByLoan != nil {
		return m.mockDeleteByLoan(ctx, loanID)
	}
	return nil
}

func (m *mockObligationRepo) FindDue(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
	return m.mockFindDue(ctx, asOf, automaticOnly)
}

type mockLedgerRepo struct {
	repository.LedgerRepository
	mockCreate           func(ctx context.Context, entry *models.LedgerEntry) error
	mockUpdate           func(ctx context.Context, entry *models.LedgerEntry) error
	mockFindByID         func(ctx context.Context, id uint) (*models.LedgerEntry, error)
	mockSumByAccount     func(ctx context.Context, accountID uint) (decimal.Decimal, error)
	mockExistsOccurrence func(ctx context.Context, occurrenceKey string) (bool, error)
	mockExistsSameDay    func(ctx context.Context, userID uint, category string, subcategory *string, amount decimal.Decimal, day time.Time) (bool, error)
}

func (m *mockLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, entry)
	}
	return nil
}

func (m *mockLedgerRepo) Update(ctx context.Context, entry *models.LedgerEntry) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, entry)
	}
	return nil
}

func (m *mockLedgerRepo) SumByAccount(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	return m.mockSumByAccount(ctx, accountID)
}

func (m *mockLedgerRepo) ExistsOccurrence(ctx context.Context, occurrenceKey string) (bool, error) {
	if m.mockExistsOccurrence != nil {
		return m.mockExistsOccurrence(ctx, occurrenceKey)
	}
	return false, nil
}

func (m *mockLedgerRepo) ExistsSameDay(ctx context.Context, userID uint, category string, subcategory *string, amount decimal.Decimal, day time.Time) (bool, error) {
	if m.mockExistsSameDay != nil {
		return m.mockExistsSameDay(ctx, userID, category, subcategory, amount, day)
	}
	return false, nil
}

type mockAccountRepo struct {
	repository.AccountRepository
	mockFindByID      func(ctx context.Context, id uint) (*models.Account, error)
	mockAdjustBalance func(ctx context.Context, id uint, delta decimal.Decimal) error
	mockSetBalance    func(ctx context.Context, id uint, balance decimal.Decimal) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockAccountRepo) AdjustBalance(ctx context.Context, id uint, delta decimal.Decimal) error {
	if m.mockAdjustBalance != nil {
		return m.mockAdjustBalance(ctx, id, delta)
	}
	return nil
}

func (m *mockAccountRepo) SetBalance(ctx context.Context, id uint, balance decimal.Decimal) error {
	return m.mockSetBalance(ctx, id, balance)
}

func testLoan() *models.Loan {
	return &models.Loan{
		ID:               1,
		UserID:           7,
		Name:             "Carro",
		Principal:        decimal.RequireFromString("10000"),
		AnnualRate:       decimal.RequireFromString("0.05"),
		DurationMonths:   12,
		RemainingMonths:  12,
		CurrentBalance:   decimal.RequireFromString("10000"),
		MonthlyPayment:   decimal.RequireFromString("856.07"),
		Status:           models.LoanStatusActive,
		FirstPaymentDate: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		Category:         "prestamo",
	}
}

func TestLoanService_Create_GeneratesScheduleAndObligation(t *testing.T) {
	loanRepo := &mockLoanRepo{}
	obligationRepo := &mockObligationRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: obligationRepo}
	service := NewLoanService(repos, nil, nil, nil)

	var createdObligation *models.Obligation
	loanRepo.mockCreate = func(ctx context.Context, loan *models.Loan) error {
		loan.ID = 42
		return nil
	}
	obligationRepo.mockCreate = func(ctx context.Context, obligation *models.Obligation) error {
		createdObligation = obligation
		return nil
	}

	first := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	loan, err := service.Create(context.Background(), CreateLoanInput{
		UserID:           7,
		Name:             "Carro",
		Principal:        decimal.RequireFromString("10000"),
		AnnualRate:       decimal.RequireFromString("0.05"),
		DurationMonths:   12,
		FirstPaymentDate: first,
	})

	require.NoError(t, err)
	assert.Equal(t, uint(42), loan.ID)
	assert.Equal(t, "856.07", loan.MonthlyPayment.String())
	assert.Equal(t, 12, loan.RemainingMonths)
	require.Len(t, loan.Installments, 12)

	totalPrincipal := decimal.Zero
	for _, row := range loan.Installments {
		totalPrincipal = totalPrincipal.Add(row.PrincipalPortion)
		assert.Equal(t, models.InstallmentStatusPlanned, row.Status)
	}
	assert.True(t, totalPrincipal.Equal(loan.Principal))
	assert.True(t, loan.Installments[11].RemainingBalanceAfter.IsZero())

	// Feb due date clamps to the 28th, the first is the start date itself
	assert.Equal(t, first, loan.Installments[0].DueDate)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), loan.Installments[1].DueDate)

	require.NotNil(t, createdObligation)
	assert.Equal(t, models.FrequencyMonthly, createdObligation.Frequency)
	assert.Equal(t, models.ConfirmationAutomatic, createdObligation.ConfirmationMode)
	assert.True(t, createdObligation.Amount.Equal(loan.MonthlyPayment))
	require.NotNil(t, createdObligation.LoanID)
	assert.Equal(t, uint(42), *createdObligation.LoanID)
	assert.Equal(t, first, createdObligation.NextDueDate)
}

func TestLoanService_Create_RejectsBadTerms(t *testing.T) {
	repos := &repository.Repositories{}
	service := NewLoanService(repos, nil, nil, nil)

	_, err := service.Create(context.Background(), CreateLoanInput{
		UserID:           7,
		Name:             "Malo",
		Principal:        decimal.Zero,
		AnnualRate:       decimal.RequireFromString("0.05"),
		DurationMonths:   12,
		FirstPaymentDate: time.Now(),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoanService_RecordPayment_OnSchedule(t *testing.T) {
	loan := testLoan()
	row := models.LoanInstallment{
		ID:              10,
		LoanID:          1,
		PaymentNumber:   1,
		DueDate:         loan.FirstPaymentDate,
		ScheduledAmount: decimal.RequireFromString("856.07"),
		Status:          models.InstallmentStatusPlanned,
	}

	loanRepo := &mockLoanRepo{}
	ledgerRepo := &mockLedgerRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: &mockObligationRepo{}, Ledger: ledgerRepo, Account: &mockAccountRepo{}}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindPlannedInstallments = func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
		return []models.LoanInstallment{row}, nil
	}

	var entry *models.LedgerEntry
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		entry = e
		return nil
	}

	outcome, err := service.RecordPayment(context.Background(), 1, 7, 0, decimal.Zero, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "41.67", outcome.Split.Interest.String())
	assert.Equal(t, "814.4", outcome.Split.Principal.String())
	assert.Equal(t, "9185.6", outcome.Loan.CurrentBalance.String())
	assert.Equal(t, 11, outcome.Loan.RemainingMonths)
	// On-schedule payments never change the payment figure
	assert.Equal(t, "856.07", outcome.Loan.MonthlyPayment.String())
	assert.False(t, outcome.PaidOff)
	assert.Equal(t, models.InstallmentStatusPaid, outcome.Installment.Status)

	require.NotNil(t, entry)
	assert.Equal(t, "-856.07", entry.Amount.String())
	assert.Equal(t, models.EntryTypeLoanPayment, entry.EntryType)
	require.NotNil(t, entry.PrincipalPortion)
	assert.Equal(t, "814.4", entry.PrincipalPortion.String())
}

func TestLoanService_RecordPayment_PaidRowConflicts(t *testing.T) {
	loan := testLoan()
	paidAmount := decimal.RequireFromString("856.07")
	paidRow := models.LoanInstallment{
		LoanID:        1,
		PaymentNumber: 1,
		Status:        models.InstallmentStatusPaid,
		PaidAmount:    &paidAmount,
	}

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindInstallment = func(ctx context.Context, loanID uint, paymentNumber int) (*models.LoanInstallment, error) {
		return &paidRow, nil
	}

	_, err := service.RecordPayment(context.Background(), 1, 7, 1, decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoanService_RecordPayment_FinalPaymentPaysOff(t *testing.T) {
	loan := testLoan()
	loan.CurrentBalance = decimal.RequireFromString("852.52")
	loan.RemainingMonths = 1
	row := models.LoanInstallment{
		LoanID:          1,
		PaymentNumber:   12,
		ScheduledAmount: decimal.RequireFromString("856.07"),
		Status:          models.InstallmentStatusPlanned,
	}

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: &mockObligationRepo{}, Ledger: &mockLedgerRepo{}, Account: &mockAccountRepo{}}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindPlannedInstallments = func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
		return []models.LoanInstallment{row}, nil
	}

	deletedPlanned := false
	loanRepo.mockDeletePlannedInstallments = func(ctx context.Context, loanID uint) error {
		deletedPlanned = true
		return nil
	}

	outcome, err := service.RecordPayment(context.Background(), 1, 7, 0, decimal.Zero, time.Now())

	require.NoError(t, err)
	assert.True(t, outcome.PaidOff)
	assert.Equal(t, models.LoanStatusPaidOff, outcome.Loan.Status)
	assert.True(t, outcome.Loan.CurrentBalance.IsZero())
	assert.Equal(t, 0, outcome.Loan.RemainingMonths)
	assert.True(t, deletedPlanned)
}

func TestLoanService_RecordPayment_OverpaymentReamortizes(t *testing.T) {
	loan := testLoan()
	row := models.LoanInstallment{
		LoanID:          1,
		PaymentNumber:   1,
		DueDate:         loan.FirstPaymentDate,
		ScheduledAmount: decimal.RequireFromString("856.07"),
		Status:          models.InstallmentStatusPlanned,
	}
	futureRows := []models.LoanInstallment{
		{LoanID: 1, PaymentNumber: 2, DueDate: time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC), Status: models.InstallmentStatusPlanned},
	}

	calls := 0
	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: &mockObligationRepo{}, Ledger: &mockLedgerRepo{}, Account: &mockAccountRepo{}}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindPlannedInstallments = func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
		calls++
		if calls == 1 {
			return append([]models.LoanInstallment{row}, futureRows...), nil
		}
		return futureRows, nil
	}

	outcome, err := service.RecordPayment(context.Background(), 1, 7, 0, decimal.RequireFromString("2000"), time.Now())

	require.NoError(t, err)
	assert.False(t, outcome.PaidOff)
	// 2000 − 41.67 interest leaves 8041.67; the payment figure re-amortizes
	assert.Equal(t, "8041.67", outcome.Loan.CurrentBalance.String())
	assert.False(t, outcome.Loan.MonthlyPayment.Equal(decimal.RequireFromString("856.07")))
}

func TestLoanService_SkipPayment_ShiftsPlannedRows(t *testing.T) {
	loan := testLoan()
	loan.FirstPaymentDate = time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	rows := []models.LoanInstallment{
		{LoanID: 1, PaymentNumber: 2, DueDate: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), Status: models.InstallmentStatusPlanned},
		{LoanID: 1, PaymentNumber: 3, DueDate: time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), Status: models.InstallmentStatusPlanned},
	}

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: &mockObligationRepo{}}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindPlannedInstallments = func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
		return rows, nil
	}

	var updated []models.LoanInstallment
	loanRepo.mockUpdateInstallment = func(ctx context.Context, row *models.LoanInstallment) error {
		updated = append(updated, *row)
		return nil
	}

	_, err := service.SkipPayment(context.Background(), 1, 7)

	require.NoError(t, err)
	require.Len(t, updated, 2)
	// The clamp recomputes from the original day 31, so Feb-28 moves to Mar-31
	assert.Equal(t, time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), updated[0].DueDate)
	assert.Equal(t, time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC), updated[1].DueDate)
}

func TestLoanService_SkipPayment_NoPlannedRows(t *testing.T) {
	loan := testLoan()

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}
	loanRepo.mockFindPlannedInstallments = func(ctx context.Context, loanID uint) ([]models.LoanInstallment, error) {
		return nil, nil
	}

	_, err := service.SkipPayment(context.Background(), 1, 7)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoanService_Payoff(t *testing.T) {
	loan := testLoan()
	loan.CurrentBalance = decimal.RequireFromString("5000")
	loan.RemainingMonths = 6

	loanRepo := &mockLoanRepo{}
	obligationRepo := &mockObligationRepo{}
	ledgerRepo := &mockLedgerRepo{}
	repos := &repository.Repositories{Loan: loanRepo, Obligation: obligationRepo, Ledger: ledgerRepo, Account: &mockAccountRepo{}}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}

	linked := &models.Obligation{ID: 3, UserID: 7, LoanID: &loan.ID, Active: true}
	obligationRepo.mockFindByLoan = func(ctx context.Context, loanID uint) (*models.Obligation, error) {
		return linked, nil
	}

	var entry *models.LedgerEntry
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		entry = e
		return nil
	}

	outcome, err := service.Payoff(context.Background(), 1, 7, time.Now())

	require.NoError(t, err)
	assert.True(t, outcome.PaidOff)
	assert.Equal(t, models.LoanStatusPaidOff, loan.Status)
	assert.True(t, loan.CurrentBalance.IsZero())
	assert.Equal(t, 0, loan.RemainingMonths)
	assert.False(t, linked.Active)

	require.NotNil(t, entry)
	assert.Equal(t, "-5000", entry.Amount.String())
	require.NotNil(t, entry.InterestPortion)
	assert.True(t, entry.InterestPortion.IsZero())
}

func TestLoanService_Payoff_AlreadyPaidOff(t *testing.T) {
	loan := testLoan()
	loan.Status = models.LoanStatusPaidOff
	loan.CurrentBalance = decimal.Zero

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}

	_, err := service.Payoff(context.Background(), 1, 7, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoanService_SimulatePayoff(t *testing.T) {
	loan := testLoan()

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}

	sims, err := service.SimulatePayoff(context.Background(), 1, 7, []int{1, 6})

	require.NoError(t, err)
	require.Len(t, sims, 2)
	assert.Equal(t, "10000", sims[0].PayoffAmount.String())
	assert.True(t, sims[1].PayoffAmount.LessThan(sims[0].PayoffAmount))
	assert.True(t, sims[0].InterestSaved.GreaterThan(sims[1].InterestSaved))

	_, err = service.SimulatePayoff(context.Background(), 1, 7, []int{40})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoanService_OwnershipEnforced(t *testing.T) {
	loan := testLoan()

	loanRepo := &mockLoanRepo{}
	repos := &repository.Repositories{Loan: loanRepo}
	service := NewLoanService(repos, nil, nil, nil)

	loanRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Loan, error) {
		return loan, nil
	}

	_, err := service.RecordPayment(context.Background(), 1, 99, 0, decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
