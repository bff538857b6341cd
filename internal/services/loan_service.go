package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sgavilanez/planea-api/internal/finance"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/sgavilanez/planea-api/internal/statemachine"
	"github.com/sgavilanez/planea-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanService manages installment loans: amortization schedule generation, the
// companion obligation that keeps payments on the calendar, and the payment
// lifecycle including re-amortization after off-schedule payments.
type LoanService struct {
	repos           *repository.Repositories
	db              *gorm.DB
	notificationSvc *NotificationService
	auditSvc        *AuditService
}

func NewLoanService(repos *repository.Repositories, db *gorm.DB, notificationSvc *NotificationService, auditSvc *AuditService) *LoanService {
	return &LoanService{
		repos:           repos,
		db:              db,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
	}
}

func (s *LoanService) transaction(fn func(repos *repository.Repositories) error) error {
	if s.db == nil {
		return fn(s.repos)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewRepositories(tx))
	})
}

// CreateLoanInput carries the fields needed to open a loan
type CreateLoanInput struct {
	UserID           uint
	Name             string
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	DurationMonths   int
	FirstPaymentDate time.Time
	AccountID        *uint
	Category         string
	Notes            *string
}

// Create opens a loan: it generates the full amortization schedule and a
// companion monthly obligation so the installments show up in the payment
// calendar and can be materialized automatically.
func (s *LoanService) Create(ctx context.Context, input CreateLoanInput) (*models.Loan, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("nombre del préstamo requerido: %w", ErrValidation)
	}
	if input.FirstPaymentDate.IsZero() {
		return nil, fmt.Errorf("fecha de primer pago requerida: %w", ErrValidation)
	}

	schedule, _, err := finance.Schedule(input.Principal, input.AnnualRate, input.DurationMonths, input.FirstPaymentDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	payment, err := finance.MonthlyPayment(input.Principal, input.AnnualRate, input.DurationMonths)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	category := input.Category
	if category == "" {
		category = "prestamo"
	}

	loan := &models.Loan{
		UserID:           input.UserID,
		Name:             input.Name,
		Principal:        input.Principal,
		AnnualRate:       input.AnnualRate,
		DurationMonths:   input.DurationMonths,
		RemainingMonths:  input.DurationMonths,
		CurrentBalance:   input.Principal,
		MonthlyPayment:   payment,
		Status:           models.LoanStatusActive,
		FirstPaymentDate: input.FirstPaymentDate,
		AccountID:        input.AccountID,
		Category:         category,
		Notes:            input.Notes,
	}

	loan.Installments = make([]models.LoanInstallment, 0, len(schedule))
	for _, row := range schedule {
		loan.Installments = append(loan.Installments, models.LoanInstallment{
			PaymentNumber:         row.PaymentNumber,
			DueDate:               row.DueDate,
			ScheduledAmount:       row.ScheduledAmount,
			PrincipalPortion:      row.PrincipalPortion,
			InterestPortion:       row.InterestPortion,
			RemainingBalanceAfter: row.RemainingBalanceAfter,
			Status:                models.InstallmentStatusPlanned,
		})
	}

	err = s.transaction(func(repos *repository.Repositories) error {
		if err := repos.Loan.Create(ctx, loan); err != nil {
			return err
		}

		obligation := &models.Obligation{
			UserID:           input.UserID,
			Name:             fmt.Sprintf("Cuota: %s", input.Name),
			Amount:           payment,
			Category:         category,
			Frequency:        models.FrequencyMonthly,
			StartDate:        input.FirstPaymentDate,
			NextDueDate:      input.FirstPaymentDate,
			ConfirmationMode: models.ConfirmationAutomatic,
			Active:           true,
			LoanID:           &loan.ID,
			AccountID:        input.AccountID,
		}
		return repos.Obligation.Create(ctx, obligation)
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, input.UserID, "CREATE", "Loan", loan.ID,
			fmt.Sprintf("Préstamo %s por %s a %d meses", loan.Name, loan.Principal.String(), loan.DurationMonths), "", "")
	}

	logger.Info("loan created", "loan_id", loan.ID, "user_id", input.UserID, "principal", loan.Principal.String())

	return loan, nil
}

func (s *LoanService) FindByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	return s.repos.Loan.FindByUser(ctx, userID)
}

// GetDetails returns the loan with its full schedule, ordered by payment number
func (s *LoanService) GetDetails(ctx context.Context, loanID, userID uint) (*models.Loan, error) {
	loan, err := s.repos.Loan.FindByIDWithInstallments(ctx, loanID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if loan.UserID != userID {
		return nil, ErrUnauthorized
	}
	return loan, nil
}

// PaymentOutcome summarizes one recorded installment payment
type PaymentOutcome struct {
	Loan        *models.Loan
	Installment *models.LoanInstallment
	Entry       *models.LedgerEntry
	Split       finance.PaymentSplit
	PaidOff     bool
}

// RecordPayment applies an actual payment to one installment. paymentNumber
// zero targets the first pending row; a zero amount means the scheduled
// monthly payment. Off-schedule amounts re-amortize the remaining balance into
// a new monthly payment and rewrite the unpaid schedule rows accordingly.
func (s *LoanService) RecordPayment(ctx context.Context, loanID, userID uint, paymentNumber int, amount decimal.Decimal, paidDate time.Time) (*PaymentOutcome, error) {
	var outcome *PaymentOutcome

	err := s.transaction(func(repos *repository.Repositories) error {
		loan, err := repos.Loan.FindByID(ctx, loanID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if loan.UserID != userID {
			return ErrUnauthorized
		}

		result, err := s.payInstallment(ctx, repos, loan, paymentNumber, amount, nil, nil, paidDate)
		if err != nil {
			return err
		}
		outcome = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterPayment(ctx, userID, outcome)
	return outcome, nil
}

// PayScheduled records a payment of the given amount against the loan's first
// pending installment using the caller's repositories, so the obligation
// materializer can run it inside its own transaction. occurrenceKey carries
// the materializer's idempotency key onto the ledger row.
func (s *LoanService) PayScheduled(ctx context.Context, repos *repository.Repositories, loan *models.Loan, amount decimal.Decimal, obligationID *uint, occurrenceKey *string, paidDate time.Time) (*PaymentOutcome, error) {
	return s.payInstallment(ctx, repos, loan, 0, amount, obligationID, occurrenceKey, paidDate)
}

// payInstallment is the transaction-scoped payment primitive. It mutates the
// installment row, the loan state, the ledger and the cached account balance,
// and keeps the companion obligation's due date in sync.
func (s *LoanService) payInstallment(ctx context.Context, repos *repository.Repositories, loan *models.Loan, paymentNumber int, amount decimal.Decimal, obligationID *uint, occurrenceKey *string, paidDate time.Time) (*PaymentOutcome, error) {
	if !loan.MayRecordPayment() {
		return nil, fmt.Errorf("el préstamo ya fue liquidado: %w", ErrInvalidState)
	}

	var row *models.LoanInstallment
	if paymentNumber > 0 {
		found, err := repos.Loan.FindInstallment(ctx, loan.ID, paymentNumber)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !found.MayPay() {
			return nil, fmt.Errorf("la cuota #%d ya fue pagada: %w", paymentNumber, ErrConflict)
		}
		row = found
	} else {
		planned, err := repos.Loan.FindPlannedInstallments(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		if len(planned) == 0 {
			return nil, fmt.Errorf("el préstamo no tiene cuotas pendientes: %w", ErrInvalidState)
		}
		row = &planned[0]
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		amount = loan.MonthlyPayment
	}

	recalc, err := finance.RecalculateAfterPayment(finance.LoanState{
		Balance:         loan.CurrentBalance,
		MonthlyPayment:  loan.MonthlyPayment,
		AnnualRate:      loan.AnnualRate,
		RemainingMonths: loan.RemainingMonths,
	}, amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	ifsm := statemachine.NewInstallmentFSM(row)
	if amount.LessThan(row.ScheduledAmount) && !recalc.PaidOff {
		if err := ifsm.PayPartial(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), ErrInvalidState)
		}
	} else {
		if err := ifsm.Pay(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), ErrInvalidState)
		}
	}

	if paidDate.IsZero() {
		paidDate = time.Now()
	}
	row.PaidAmount = &amount
	row.PaidDate = &paidDate
	if err := repos.Loan.UpdateInstallment(ctx, row); err != nil {
		return nil, err
	}

	loan.CurrentBalance = recalc.State.Balance
	loan.MonthlyPayment = recalc.State.MonthlyPayment
	loan.RemainingMonths = recalc.State.RemainingMonths

	if recalc.PaidOff {
		lfsm := statemachine.NewLoanFSM(loan)
		if err := lfsm.Payoff(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), ErrInvalidState)
		}
		if err := repos.Loan.DeletePlannedInstallments(ctx, loan.ID); err != nil {
			return nil, err
		}
	} else if recalc.PaymentChanged {
		remaining, err := repos.Loan.FindPlannedInstallments(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		if err := s.rewritePlannedSchedule(ctx, repos, loan, remaining); err != nil {
			return nil, err
		}
	}

	if err := repos.Loan.Update(ctx, loan); err != nil {
		return nil, err
	}

	if err := s.syncObligation(ctx, repos, loan, recalc.PaidOff); err != nil {
		return nil, err
	}

	split := recalc.Split
	entry := &models.LedgerEntry{
		UserID:           loan.UserID,
		AccountID:        loan.AccountID,
		ObligationID:     obligationID,
		LoanID:           &loan.ID,
		Amount:           finance.SignedAmount(loan.Category, amount),
		Category:         loan.Category,
		Description:      fmt.Sprintf("Pago de cuota #%d: %s", row.PaymentNumber, loan.Name),
		EntryType:        models.EntryTypeLoanPayment,
		EntryDate:        paidDate,
		PrincipalPortion: &split.Principal,
		InterestPortion:  &split.Interest,
		OccurrenceKey:    occurrenceKey,
	}
	if err := postEntry(ctx, repos, entry); err != nil {
		return nil, err
	}

	return &PaymentOutcome{
		Loan:        loan,
		Installment: row,
		Entry:       entry,
		Split:       split,
		PaidOff:     recalc.PaidOff,
	}, nil
}

// rewritePlannedSchedule re-amortizes the unpaid rows after the monthly
// payment changed. The row count stays the same, so updates happen in place.
func (s *LoanService) rewritePlannedSchedule(ctx context.Context, repos *repository.Repositories, loan *models.Loan, remaining []models.LoanInstallment) error {
	if len(remaining) == 0 {
		return nil
	}

	schedule, _, err := finance.Schedule(loan.CurrentBalance, loan.AnnualRate, loan.RemainingMonths, remaining[0].DueDate)
	if err != nil {
		return err
	}

	for i := range remaining {
		if i >= len(schedule) {
			break
		}
		row := &remaining[i]
		row.ScheduledAmount = schedule[i].ScheduledAmount
		row.PrincipalPortion = schedule[i].PrincipalPortion
		row.InterestPortion = schedule[i].InterestPortion
		row.RemainingBalanceAfter = schedule[i].RemainingBalanceAfter
		if err := repos.Loan.UpdateInstallment(ctx, row); err != nil {
			return err
		}
	}

	return nil
}

// syncObligation keeps the companion obligation aligned with the loan: its
// amount tracks the (possibly re-amortized) monthly payment and its due date
// tracks the first unpaid installment. A paid off loan deactivates it.
func (s *LoanService) syncObligation(ctx context.Context, repos *repository.Repositories, loan *models.Loan, paidOff bool) error {
	obligation, err := repos.Obligation.FindByLoan(ctx, loan.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	if paidOff {
		obligation.Active = false
		return repos.Obligation.Update(ctx, obligation)
	}

	planned, err := repos.Loan.FindPlannedInstallments(ctx, loan.ID)
	if err != nil {
		return err
	}
	if len(planned) > 0 {
		obligation.NextDueDate = planned[0].DueDate
	}
	obligation.Amount = loan.MonthlyPayment
	return repos.Obligation.Update(ctx, obligation)
}

// afterPayment sends the post-commit notifications and audit entries
func (s *LoanService) afterPayment(ctx context.Context, userID uint, outcome *PaymentOutcome) {
	if outcome == nil {
		return
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "PAY", "Loan", outcome.Loan.ID,
			fmt.Sprintf("Cuota #%d pagada, saldo restante %s", outcome.Installment.PaymentNumber, outcome.Loan.CurrentBalance.String()), "", "")
	}

	if s.notificationSvc == nil {
		return
	}

	if err := s.notificationSvc.NotifyUser(ctx, outcome.Loan.UserID,
		"Pago registrado",
		fmt.Sprintf("Se registró el pago de la cuota #%d de %s.", outcome.Installment.PaymentNumber, outcome.Loan.Name),
		models.NotificationTypePaymentRecorded); err != nil {
		logger.Error("failed to notify payment", "loan_id", outcome.Loan.ID, "error", err)
	}

	if outcome.PaidOff {
		if err := s.notificationSvc.NotifyUser(ctx, outcome.Loan.UserID,
			"Préstamo liquidado",
			fmt.Sprintf("¡Felicidades! El préstamo %s quedó totalmente pagado.", outcome.Loan.Name),
			models.NotificationTypeLoanPaidOff); err != nil {
			logger.Error("failed to notify payoff", "loan_id", outcome.Loan.ID, "error", err)
		}
	}
}

// SkipPayment pushes every unpaid installment one month forward without
// touching balances. The companion obligation follows the new first due date.
func (s *LoanService) SkipPayment(ctx context.Context, loanID, userID uint) (*models.Loan, error) {
	var loan *models.Loan

	err := s.transaction(func(repos *repository.Repositories) error {
		found, err := repos.Loan.FindByID(ctx, loanID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if found.UserID != userID {
			return ErrUnauthorized
		}
		if !found.MayRecordPayment() {
			return fmt.Errorf("el préstamo ya fue liquidado: %w", ErrInvalidState)
		}

		planned, err := repos.Loan.FindPlannedInstallments(ctx, loanID)
		if err != nil {
			return err
		}
		if len(planned) == 0 {
			return fmt.Errorf("el préstamo no tiene cuotas pendientes: %w", ErrInvalidState)
		}

		for i := range planned {
			row := &planned[i]
			shifted, err := finance.NextDueDateAfterFiring(found.FirstPaymentDate, models.FrequencyMonthly, row.DueDate)
			if err != nil {
				return err
			}
			row.DueDate = shifted
			if err := repos.Loan.UpdateInstallment(ctx, row); err != nil {
				return err
			}
		}

		if err := s.syncObligation(ctx, repos, found, false); err != nil {
			return err
		}

		loan = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "SKIP", "Loan", loanID, "Cuotas pendientes desplazadas un mes", "", "")
	}

	return loan, nil
}

// Payoff settles the remaining balance in a single penalty-free payment. The
// remaining planned rows disappear and the loan reaches its terminal state.
func (s *LoanService) Payoff(ctx context.Context, loanID, userID uint, paidDate time.Time) (*PaymentOutcome, error) {
	var outcome *PaymentOutcome

	err := s.transaction(func(repos *repository.Repositories) error {
		loan, err := repos.Loan.FindByID(ctx, loanID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if loan.UserID != userID {
			return ErrUnauthorized
		}
		if !loan.MayPayoff() {
			return fmt.Errorf("el préstamo no puede liquidarse en su estado actual: %w", ErrInvalidState)
		}

		amount := loan.CurrentBalance

		lfsm := statemachine.NewLoanFSM(loan)
		if err := lfsm.Payoff(ctx); err != nil {
			return fmt.Errorf("%s: %w", err.Error(), ErrInvalidState)
		}

		loan.CurrentBalance = decimal.Zero
		loan.RemainingMonths = 0
		if err := repos.Loan.Update(ctx, loan); err != nil {
			return err
		}
		if err := repos.Loan.DeletePlannedInstallments(ctx, loan.ID); err != nil {
			return err
		}
		if err := s.syncObligation(ctx, repos, loan, true); err != nil {
			return err
		}

		if paidDate.IsZero() {
			paidDate = time.Now()
		}

		principal := amount
		zero := decimal.Zero
		entry := &models.LedgerEntry{
			UserID:           loan.UserID,
			AccountID:        loan.AccountID,
			LoanID:           &loan.ID,
			Amount:           finance.SignedAmount(loan.Category, amount),
			Category:         loan.Category,
			Description:      fmt.Sprintf("Liquidación anticipada: %s", loan.Name),
			EntryType:        models.EntryTypeLoanPayment,
			EntryDate:        paidDate,
			PrincipalPortion: &principal,
			InterestPortion:  &zero,
		}
		if err := postEntry(ctx, repos, entry); err != nil {
			return err
		}

		outcome = &PaymentOutcome{
			Loan:    loan,
			Entry:   entry,
			Split:   finance.PaymentSplit{Interest: zero, Principal: principal},
			PaidOff: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "PAYOFF", "Loan", loanID,
			fmt.Sprintf("Liquidación anticipada por %s", outcome.Entry.Amount.Abs().String()), "", "")
	}
	if s.notificationSvc != nil {
		if err := s.notificationSvc.NotifyUser(ctx, outcome.Loan.UserID,
			"Préstamo liquidado",
			fmt.Sprintf("¡Felicidades! El préstamo %s quedó totalmente pagado.", outcome.Loan.Name),
			models.NotificationTypeLoanPaidOff); err != nil {
			logger.Error("failed to notify payoff", "loan_id", loanID, "error", err)
		}
	}

	return outcome, nil
}

// SimulatePayoff compares paying the loan off right before each target
// installment against riding out the schedule.
func (s *LoanService) SimulatePayoff(ctx context.Context, loanID, userID uint, targetMonths []int) ([]finance.PayoffSimulation, error) {
	loan, err := s.repos.Loan.FindByID(ctx, loanID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if loan.UserID != userID {
		return nil, ErrUnauthorized
	}
	if !loan.MayPayoff() {
		return nil, fmt.Errorf("el préstamo no puede liquidarse en su estado actual: %w", ErrInvalidState)
	}

	state := finance.LoanState{
		Balance:         loan.CurrentBalance,
		MonthlyPayment:  loan.MonthlyPayment,
		AnnualRate:      loan.AnnualRate,
		RemainingMonths: loan.RemainingMonths,
	}

	simulations := make([]finance.PayoffSimulation, 0, len(targetMonths))
	for _, target := range targetMonths {
		sim, err := finance.SimulateEarlyPayoff(state, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
		}
		simulations = append(simulations, sim)
	}

	return simulations, nil
}

// UpdateLoanInput carries the mutable metadata of a loan. Financial fields are
// immutable after creation; changing terms means deleting and recreating.
type UpdateLoanInput struct {
	Name      *string
	Category  *string
	Notes     *string
	AccountID *uint
}

func (s *LoanService) Update(ctx context.Context, loanID, userID uint, input UpdateLoanInput) (*models.Loan, error) {
	loan, err := s.repos.Loan.FindByID(ctx, loanID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if loan.UserID != userID {
		return nil, ErrUnauthorized
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("nombre del préstamo requerido: %w", ErrValidation)
		}
		loan.Name = *input.Name
	}
	if input.Category != nil {
		loan.Category = *input.Category
	}
	if input.Notes != nil {
		loan.Notes = input.Notes
	}
	if input.AccountID != nil {
		loan.AccountID = input.AccountID
	}

	if err := s.repos.Loan.Update(ctx, loan); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "UPDATE", "Loan", loanID, "Metadatos del préstamo actualizados", "", "")
	}

	return loan, nil
}

// Delete removes the loan, its schedule and the companion obligation. Posted
// ledger entries stay; history is never rewritten.
func (s *LoanService) Delete(ctx context.Context, loanID, userID uint) error {
	err := s.transaction(func(repos *repository.Repositories) error {
		loan, err := repos.Loan.FindByID(ctx, loanID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if loan.UserID != userID {
			return ErrUnauthorized
		}

		if err := repos.Obligation.DeleteByLoan(ctx, loanID); err != nil {
			return err
		}
		if err := repos.Loan.DeleteInstallments(ctx, loanID); err != nil {
			return err
		}
		return repos.Loan.Delete(ctx, loanID)
	})
	if err != nil {
		return err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "DELETE", "Loan", loanID, "Préstamo eliminado", "", "")
	}

	return nil
}
