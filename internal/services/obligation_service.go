package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sgavilanez/planea-api/internal/finance"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/sgavilanez/planea-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ObligationService manages recurring obligations and materializes due ones
// into ledger entries. Materialization of a single obligation is one atomic
// unit: ledger insert, balance mutation and schedule advance commit or roll
// back together.
type ObligationService struct {
	repos           *repository.Repositories
	db              *gorm.DB
	loanSvc         *LoanService
	budgetSvc       *BudgetService
	notificationSvc *NotificationService
	auditSvc        *AuditService
}

func NewObligationService(repos *repository.Repositories, db *gorm.DB, loanSvc *LoanService, budgetSvc *BudgetService, notificationSvc *NotificationService, auditSvc *AuditService) *ObligationService {
	return &ObligationService{
		repos:           repos,
		db:              db,
		loanSvc:         loanSvc,
		budgetSvc:       budgetSvc,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
	}
}

func (s *ObligationService) transaction(fn func(repos *repository.Repositories) error) error {
	if s.db == nil {
		return fn(s.repos)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewRepositories(tx))
	})
}

// CreateObligationInput carries the fields for a new obligation
type CreateObligationInput struct {
	UserID           uint
	Name             string
	Amount           decimal.Decimal
	Category         string
	Subcategory      *string
	Frequency        string
	StartDate        time.Time
	ConfirmationMode string
	AccountID        *uint
	RepeatCount      *int
	Notes            *string

	// Budget application, optional and best-effort
	ApplyToBudget bool
	BudgetMode    string
	BudgetMonth   int
	BudgetYear    int
}

// Create registers a new obligation. Its first due date follows the recurrence
// rule: a start date in the past or today is due immediately. Budget
// application failures are logged but never fail the creation.
func (s *ObligationService) Create(ctx context.Context, input CreateObligationInput) (*models.Obligation, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("nombre de la obligación requerido: %w", ErrValidation)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("el monto debe ser positivo: %w", ErrValidation)
	}
	if !models.ValidFrequency(input.Frequency) {
		return nil, fmt.Errorf("frecuencia %q no soportada: %w", input.Frequency, ErrValidation)
	}
	if input.Frequency == models.FrequencyRepeat && (input.RepeatCount == nil || *input.RepeatCount < 1) {
		return nil, fmt.Errorf("las obligaciones repetidas requieren un número de repeticiones: %w", ErrValidation)
	}
	if input.ConfirmationMode == "" {
		input.ConfirmationMode = models.ConfirmationManual
	}

	nextDue, err := finance.NextDueDate(input.StartDate, input.Frequency, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	obligation := &models.Obligation{
		UserID:           input.UserID,
		Name:             input.Name,
		Amount:           input.Amount,
		Category:         input.Category,
		Subcategory:      input.Subcategory,
		Frequency:        input.Frequency,
		StartDate:        input.StartDate,
		NextDueDate:      nextDue,
		ConfirmationMode: input.ConfirmationMode,
		Active:           true,
		AccountID:        input.AccountID,
		RepeatCount:      input.RepeatCount,
		Notes:            input.Notes,
	}
	if input.RepeatCount != nil {
		remaining := *input.RepeatCount
		obligation.RemainingRepeats = &remaining
	}

	if err := s.repos.Obligation.Create(ctx, obligation); err != nil {
		return nil, err
	}

	if input.ApplyToBudget && s.budgetSvc != nil {
		year := input.BudgetYear
		if year == 0 {
			year = time.Now().Year()
		}
		if err := s.budgetSvc.Apply(ctx, obligation, input.BudgetMode, input.BudgetMonth, year); err != nil {
			logger.Error("budget apply failed, obligation created without it",
				"obligation_id", obligation.ID, "error", err)
		}
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, input.UserID, "CREATE", "Obligation", obligation.ID,
			fmt.Sprintf("Obligación %s (%s) por %s", obligation.Name, obligation.Frequency, obligation.Amount.String()), "", "")
	}

	return obligation, nil
}

func (s *ObligationService) FindByID(ctx context.Context, id, userID uint) (*models.Obligation, error) {
	obligation, err := s.repos.Obligation.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if obligation.UserID != userID {
		return nil, ErrUnauthorized
	}
	return obligation, nil
}

func (s *ObligationService) FindByUser(ctx context.Context, userID uint, category string, activeOnly bool) ([]models.Obligation, error) {
	return s.repos.Obligation.FindByUser(ctx, userID, category, activeOnly)
}

// History returns the ledger entries an obligation has produced, newest first.
func (s *ObligationService) History(ctx context.Context, id, userID uint) ([]models.LedgerEntry, error) {
	if _, err := s.FindByID(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repos.Ledger.FindByObligationID(ctx, id)
}

// ListDue returns the user's active obligations due on or before the given
// date, the overdue ones first.
func (s *ObligationService) ListDue(ctx context.Context, userID uint, until time.Time) ([]models.Obligation, error) {
	return s.repos.Obligation.FindDueWithin(ctx, userID, until)
}

// Occurrences previews the next n due dates of an obligation
func (s *ObligationService) Occurrences(ctx context.Context, id, userID uint, n int) ([]time.Time, error) {
	obligation, err := s.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	dates, err := finance.NextOccurrences(obligation.StartDate, obligation.Frequency, n, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}
	return dates, nil
}

// UpdateObligationInput carries the mutable fields of an obligation
type UpdateObligationInput struct {
	Name             *string
	Amount           *decimal.Decimal
	Category         *string
	Subcategory      *string
	ConfirmationMode *string
	AccountID        *uint
	Notes            *string
}

// Update edits an obligation in place. Loan-linked obligations track their
// loan; their amount and schedule are managed by the loan lifecycle and are
// not editable here.
func (s *ObligationService) Update(ctx context.Context, id, userID uint, input UpdateObligationInput) (*models.Obligation, error) {
	obligation, err := s.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if obligation.IsLoanLinked() && input.Amount != nil {
		return nil, fmt.Errorf("el monto de una obligación ligada a préstamo lo gobierna el préstamo: %w", ErrValidation)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("nombre de la obligación requerido: %w", ErrValidation)
		}
		obligation.Name = *input.Name
	}
	if input.Amount != nil {
		if input.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("el monto debe ser positivo: %w", ErrValidation)
		}
		obligation.Amount = *input.Amount
	}
	if input.Category != nil {
		obligation.Category = *input.Category
	}
	if input.Subcategory != nil {
		obligation.Subcategory = input.Subcategory
	}
	if input.ConfirmationMode != nil {
		if *input.ConfirmationMode != models.ConfirmationManual && *input.ConfirmationMode != models.ConfirmationAutomatic {
			return nil, fmt.Errorf("modo de confirmación %q no soportado: %w", *input.ConfirmationMode, ErrValidation)
		}
		obligation.ConfirmationMode = *input.ConfirmationMode
	}
	if input.AccountID != nil {
		obligation.AccountID = input.AccountID
	}
	if input.Notes != nil {
		obligation.Notes = input.Notes
	}

	if err := s.repos.Obligation.Update(ctx, obligation); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "UPDATE", "Obligation", id, "Obligación actualizada", "", "")
	}

	return obligation, nil
}

// ToggleActive flips the active flag. An inactive obligation never fires, not
// even when overdue.
func (s *ObligationService) ToggleActive(ctx context.Context, id, userID uint) (*models.Obligation, error) {
	obligation, err := s.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if obligation.IsLoanLinked() {
		return nil, fmt.Errorf("una obligación ligada a préstamo sigue el ciclo de vida del préstamo: %w", ErrValidation)
	}

	obligation.Active = !obligation.Active
	if err := s.repos.Obligation.Update(ctx, obligation); err != nil {
		return nil, err
	}
	return obligation, nil
}

// Delete removes an obligation. A pending budget application is removed first,
// best-effort. Loan-linked obligations go away with their loan, not here.
func (s *ObligationService) Delete(ctx context.Context, id, userID uint) error {
	obligation, err := s.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if obligation.IsLoanLinked() {
		return fmt.Errorf("una obligación ligada a préstamo se elimina junto con el préstamo: %w", ErrValidation)
	}

	if obligation.AppliedToBudget && s.budgetSvc != nil {
		if err := s.budgetSvc.Remove(ctx, obligation, time.Now().Year()); err != nil {
			logger.Error("budget removal failed, obligation deleted anyway",
				"obligation_id", obligation.ID, "error", err)
		}
	}

	if err := s.repos.Obligation.Delete(ctx, id); err != nil {
		return err
	}

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, userID, "DELETE", "Obligation", id, fmt.Sprintf("Obligación %s eliminada", obligation.Name), "", "")
	}

	return nil
}

// occurrenceKey is the idempotency token of one scheduled firing. The same
// obligation and due date always produce the same key, and the ledger carries
// a unique index over it.
func occurrenceKey(obligationID uint, dueDate time.Time) string {
	return fmt.Sprintf("obl-%d-%s", obligationID, dueDate.Format("2006-01-02"))
}

// MaterializeResult summarizes one materialized occurrence
type MaterializeResult struct {
	Obligation *models.Obligation
	Entry      *models.LedgerEntry
	Payment    *PaymentOutcome
}

// Materialize turns one due obligation into a ledger entry and advances its
// schedule, all inside one transaction. userID zero means the scheduler is
// the caller and ownership is not checked.
func (s *ObligationService) Materialize(ctx context.Context, id, userID uint, when time.Time) (*MaterializeResult, error) {
	var result *MaterializeResult

	err := s.transaction(func(repos *repository.Repositories) error {
		obligation, err := repos.Obligation.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if userID != 0 && obligation.UserID != userID {
			return ErrUnauthorized
		}
		if !obligation.Active {
			return fmt.Errorf("la obligación está inactiva: %w", ErrInvalidState)
		}

		// The duplicate guards run before the due-date check: a repeat call on
		// the day of a firing is a conflict, not a not-yet-due rejection.
		signed := finance.SignedAmount(obligation.Category, obligation.Amount)
		duplicate, err := repos.Ledger.ExistsSameDay(ctx, obligation.UserID, obligation.Category, obligation.Subcategory, signed, when)
		if err != nil {
			return err
		}
		if duplicate {
			return fmt.Errorf("ya existe un movimiento idéntico hoy: %w", ErrConflict)
		}

		if !obligation.IsDue(when) {
			return fmt.Errorf("la obligación aún no está vencida: %w", ErrInvalidState)
		}

		key := occurrenceKey(obligation.ID, obligation.NextDueDate)
		exists, err := repos.Ledger.ExistsOccurrence(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("la ocurrencia ya fue registrada: %w", ErrConflict)
		}

		if obligation.IsLoanLinked() {
			outcome, err := s.materializeLoanPayment(ctx, repos, obligation, key, when)
			if err != nil {
				return err
			}
			// The payment resynced the obligation row to the loan schedule;
			// re-read it so the result carries the advanced due date and amount.
			synced, err := repos.Obligation.FindByID(ctx, obligation.ID)
			if err != nil {
				return err
			}
			result = &MaterializeResult{Obligation: synced, Entry: outcome.Entry, Payment: outcome}
			return nil
		}

		entry := &models.LedgerEntry{
			UserID:        obligation.UserID,
			AccountID:     obligation.AccountID,
			ObligationID:  &obligation.ID,
			Amount:        signed,
			Category:      obligation.Category,
			Subcategory:   obligation.Subcategory,
			Description:   obligation.Name,
			EntryType:     entryType(obligation.Category),
			EntryDate:     obligation.NextDueDate,
			OccurrenceKey: &key,
		}
		if err := postEntry(ctx, repos, entry); err != nil {
			return err
		}

		if err := s.advanceRecurrence(ctx, repos, obligation); err != nil {
			return err
		}

		result = &MaterializeResult{Obligation: obligation, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMaterialize(ctx, result)
	return result, nil
}

// materializeLoanPayment delegates a loan-linked firing to the loan payment
// lifecycle. The payment step posts the breakdown entry and adjusts the
// balance itself, and resyncs this obligation's due date to the schedule, so
// no separate posting or recurrence advance happens here.
func (s *ObligationService) materializeLoanPayment(ctx context.Context, repos *repository.Repositories, obligation *models.Obligation, key string, when time.Time) (*PaymentOutcome, error) {
	loan, err := repos.Loan.FindByID(ctx, *obligation.LoanID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("el préstamo de la obligación no existe: %w", ErrNotFound)
		}
		return nil, err
	}

	return s.loanSvc.PayScheduled(ctx, repos, loan, obligation.Amount, &obligation.ID, &key, when)
}

// advanceRecurrence moves the obligation past the occurrence that just fired.
// ONE_TIME deactivates; REPEAT burns one repetition and deactivates at zero;
// the open-ended frequencies advance forever.
func (s *ObligationService) advanceRecurrence(ctx context.Context, repos *repository.Repositories, obligation *models.Obligation) error {
	switch obligation.Frequency {
	case models.FrequencyOneTime:
		obligation.Active = false

	case models.FrequencyRepeat:
		remaining := 0
		if obligation.RemainingRepeats != nil {
			remaining = *obligation.RemainingRepeats - 1
		}
		obligation.RemainingRepeats = &remaining
		if remaining <= 0 {
			obligation.Active = false
		} else {
			next, err := finance.NextDueDateAfterFiring(obligation.StartDate, obligation.Frequency, obligation.NextDueDate)
			if err != nil {
				return err
			}
			obligation.NextDueDate = next
		}

	default:
		next, err := finance.NextDueDateAfterFiring(obligation.StartDate, obligation.Frequency, obligation.NextDueDate)
		if err != nil {
			return err
		}
		obligation.NextDueDate = next
	}

	return repos.Obligation.Update(ctx, obligation)
}

func (s *ObligationService) afterMaterialize(ctx context.Context, result *MaterializeResult) {
	if result == nil {
		return
	}
	obligation := result.Obligation

	if s.auditSvc != nil {
		s.auditSvc.Log(ctx, obligation.UserID, "MATERIALIZE", "Obligation", obligation.ID,
			fmt.Sprintf("Obligación %s registrada en el libro por %s", obligation.Name, obligation.Amount.String()), "", "")
	}

	if s.notificationSvc != nil {
		if err := s.notificationSvc.NotifyUser(ctx, obligation.UserID,
			"Obligación registrada",
			fmt.Sprintf("Se registró %s por %s.", obligation.Name, obligation.Amount.String()),
			models.NotificationTypeObligationMaterialized); err != nil {
			logger.Error("failed to notify materialization", "obligation_id", obligation.ID, "error", err)
		}
	}
}

// entryType maps an obligation category onto the ledger entry type
func entryType(category string) string {
	if category == models.CategoryIncome {
		return models.EntryTypeIncome
	}
	return models.EntryTypeExpense
}

// SweepResult summarizes one scheduler pass over the due obligations
type SweepResult struct {
	Processed int
	Failed    int
	Errors    []error
}

// MaterializeDue fires every due automatic obligation. Failures are isolated:
// one obligation's error is collected and the sweep moves on.
func (s *ObligationService) MaterializeDue(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	due, err := s.repos.Obligation.FindDue(ctx, asOf, true)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for i := range due {
		obligation := &due[i]
		if _, err := s.Materialize(ctx, obligation.ID, 0, asOf); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("obligación %d: %w", obligation.ID, err))
			logger.Error("materialization failed", "obligation_id", obligation.ID, "error", err)
			continue
		}
		result.Processed++
	}

	return result, nil
}

// NotifyOverdue reminds users of manual obligations that are due but not yet
// confirmed. Run periodically by the background worker.
func (s *ObligationService) NotifyOverdue(ctx context.Context, asOf time.Time) error {
	if s.notificationSvc == nil {
		return nil
	}

	due, err := s.repos.Obligation.FindDue(ctx, asOf, false)
	if err != nil {
		return err
	}

	for i := range due {
		obligation := &due[i]
		if obligation.IsAutomatic() {
			continue
		}
		if err := s.notificationSvc.NotifyUser(ctx, obligation.UserID,
			"Obligación vencida",
			fmt.Sprintf("%s está pendiente de confirmación desde el %s.", obligation.Name, obligation.NextDueDate.Format("2006-01-02")),
			models.NotificationTypeObligationDue); err != nil {
			logger.Error("failed to send due reminder", "obligation_id", obligation.ID, "error", err)
		}
	}

	return nil
}
