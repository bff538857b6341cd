package services

import (
	"context"
	"fmt"

	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/sgavilanez/planea-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetService mirrors obligations into monthly planning buckets. Application
// and removal are exact algebraic inverses: removing re-posts the negated
// per-month deltas, so a remove after an apply always restores the buckets.
type BudgetService struct {
	repos *repository.Repositories
	db    *gorm.DB
}

func NewBudgetService(repos *repository.Repositories, db *gorm.DB) *BudgetService {
	return &BudgetService{repos: repos, db: db}
}

func (s *BudgetService) transaction(fn func(repos *repository.Repositories) error) error {
	if s.db == nil {
		return fn(s.repos)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewRepositories(tx))
	})
}

// Buckets returns the twelve planning totals of one year, missing months
// simply absent.
func (s *BudgetService) Buckets(ctx context.Context, userID uint, year int) ([]models.BudgetBucket, error) {
	return s.repos.Budget.FindBucketsByYear(ctx, userID, year)
}

// monthDeltas computes the per-month contribution of an obligation for one
// target year. Index 0 is January.
func monthDeltas(obligation *models.Obligation, mode string, targetMonth, year int) ([12]decimal.Decimal, error) {
	var deltas [12]decimal.Decimal

	switch obligation.Frequency {
	case models.FrequencyMonthly:
		for m := 0; m < 12; m++ {
			deltas[m] = obligation.Amount
		}

	case models.FrequencyYearly:
		switch mode {
		case models.BudgetModeSpecific:
			if targetMonth < 0 || targetMonth > 11 {
				return deltas, fmt.Errorf("mes objetivo fuera de rango [0, 11]: %w", ErrValidation)
			}
			deltas[targetMonth] = obligation.Amount
		case models.BudgetModeDivide:
			share := obligation.Amount.Div(decimal.NewFromInt(12)).Round(2)
			for m := 0; m < 12; m++ {
				deltas[m] = share
			}
		default:
			return deltas, fmt.Errorf("modo de presupuesto %q no soportado: %w", mode, ErrValidation)
		}

	case models.FrequencyOneTime:
		if obligation.StartDate.Year() != year {
			return deltas, fmt.Errorf("la fecha del pago único no cae en el año %d: %w", year, ErrValidation)
		}
		deltas[int(obligation.StartDate.Month())-1] = obligation.Amount

	default:
		return deltas, fmt.Errorf("frecuencia %q no se refleja en el presupuesto: %w", obligation.Frequency, ErrValidation)
	}

	return deltas, nil
}

// Apply adds the obligation's contribution to the year's buckets and records
// one contribution row per touched month. The resolved mode and target month
// are stored on the obligation so removal never has to guess.
func (s *BudgetService) Apply(ctx context.Context, obligation *models.Obligation, mode string, targetMonth, year int) error {
	if obligation.AppliedToBudget {
		return fmt.Errorf("la obligación ya está aplicada al presupuesto: %w", ErrConflict)
	}

	deltas, err := monthDeltas(obligation, mode, targetMonth, year)
	if err != nil {
		return err
	}

	return s.transaction(func(repos *repository.Repositories) error {
		for m, delta := range deltas {
			if delta.IsZero() {
				continue
			}
			if err := repos.Budget.AddToBucket(ctx, obligation.UserID, year, m, delta); err != nil {
				return err
			}
			contribution := &models.BudgetContribution{
				ObligationID: obligation.ID,
				UserID:       obligation.UserID,
				Year:         year,
				Month:        m,
				Amount:       delta,
			}
			if err := repos.Budget.CreateContribution(ctx, contribution); err != nil {
				return err
			}
		}

		obligation.AppliedToBudget = true
		if obligation.Frequency == models.FrequencyYearly {
			resolved := mode
			obligation.BudgetMode = &resolved
			if mode == models.BudgetModeSpecific {
				month := targetMonth
				obligation.BudgetMonth = &month
			}
		}
		return repos.Obligation.Update(ctx, obligation)
	})
}

// Remove negates the per-month deltas the obligation contributed and clears
// its contribution rows. When the stored application mode is missing it falls
// back to inferring the mode from the contribution rows.
func (s *BudgetService) Remove(ctx context.Context, obligation *models.Obligation, year int) error {
	if !obligation.AppliedToBudget {
		return fmt.Errorf("la obligación no está aplicada al presupuesto: %w", ErrValidation)
	}

	mode, targetMonth := s.resolveMode(ctx, obligation, year)

	deltas, err := monthDeltas(obligation, mode, targetMonth, year)
	if err != nil {
		return err
	}

	return s.transaction(func(repos *repository.Repositories) error {
		for m, delta := range deltas {
			if delta.IsZero() {
				continue
			}
			if err := repos.Budget.AddToBucket(ctx, obligation.UserID, year, m, delta.Neg()); err != nil {
				return err
			}
		}

		if err := repos.Budget.DeleteContributions(ctx, obligation.ID, year); err != nil {
			return err
		}

		obligation.AppliedToBudget = false
		obligation.BudgetMode = nil
		obligation.BudgetMonth = nil
		return repos.Obligation.Update(ctx, obligation)
	})
}

// resolveMode prefers the mode stored at application time. The contribution
// scan is the legacy fallback: one touched month means specific, anything else
// means divide.
func (s *BudgetService) resolveMode(ctx context.Context, obligation *models.Obligation, year int) (string, int) {
	mode := ""
	targetMonth := 0
	if obligation.BudgetMode != nil {
		mode = *obligation.BudgetMode
	}
	if obligation.BudgetMonth != nil {
		targetMonth = *obligation.BudgetMonth
	}
	if mode != "" || obligation.Frequency != models.FrequencyYearly {
		return mode, targetMonth
	}

	contributions, err := s.repos.Budget.FindContributions(ctx, obligation.ID, year)
	if err != nil {
		logger.Error("failed to scan budget contributions", "obligation_id", obligation.ID, "error", err)
		return models.BudgetModeDivide, 0
	}

	months := make(map[int]bool, len(contributions))
	for _, c := range contributions {
		months[c.Month] = true
	}

	if len(months) == 1 {
		for m := range months {
			return models.BudgetModeSpecific, m
		}
	}
	return models.BudgetModeDivide, 0
}
