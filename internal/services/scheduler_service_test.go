package services

import (
	"context"
	"testing"
	"time"

	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSchedulerFixture(interval time.Duration) (*SchedulerService, *mockObligationRepo, *mockLedgerRepo) {
	obligationRepo := &mockObligationRepo{}
	ledgerRepo := &mockLedgerRepo{}
	repos := &repository.Repositories{
		Obligation: obligationRepo,
		Ledger:     ledgerRepo,
		Account:    &mockAccountRepo{},
		Loan:       &mockLoanRepo{},
	}
	loanSvc := NewLoanService(repos, nil, nil, nil)
	obligationSvc := NewObligationService(repos, nil, loanSvc, nil, nil, nil)
	return NewSchedulerService(obligationSvc, nil, interval), obligationRepo, ledgerRepo
}

func TestSchedulerService_RunNow(t *testing.T) {
	scheduler, obligationRepo, ledgerRepo := newSchedulerFixture(time.Minute)

	obligation := testObligation()
	obligationRepo.mockFindDue = func(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
		assert.True(t, automaticOnly)
		return []models.Obligation{*obligation}, nil
	}
	obligationRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Obligation, error) {
		return obligation, nil
	}

	created := 0
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		created++
		return nil
	}

	result, err := scheduler.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, created)

	status := scheduler.Status()
	assert.Equal(t, int64(1), status.TotalSweeps)
	assert.Equal(t, 1, status.LastProcessed)
	require.NotNil(t, status.LastRunAt)
}

func TestSchedulerService_StartStop(t *testing.T) {
	scheduler, obligationRepo, _ := newSchedulerFixture(time.Hour)

	obligationRepo.mockFindDue = func(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
		return nil, nil
	}

	require.NoError(t, scheduler.Start())
	assert.True(t, scheduler.Status().Running)

	err := scheduler.Start()
	assert.ErrorIs(t, err, ErrInvalidState)

	scheduler.Stop()
	assert.False(t, scheduler.Status().Running)

	// Stop is idempotent
	scheduler.Stop()

	// A stopped scheduler can be started again
	require.NoError(t, scheduler.Start())
	scheduler.Stop()
}

func TestSchedulerService_SweepFailureIsIsolated(t *testing.T) {
	scheduler, obligationRepo, ledgerRepo := newSchedulerFixture(time.Minute)

	obligation := testObligation()
	obligationRepo.mockFindDue = func(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
		return []models.Obligation{*obligation}, nil
	}
	obligationRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Obligation, error) {
		return obligation, nil
	}
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		return assert.AnError
	}

	result, err := scheduler.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, scheduler.Status().LastFailed)
}

func TestSchedulerService_SweepFailuresAlertAdmins(t *testing.T) {
	obligationRepo := &mockObligationRepo{}
	ledgerRepo := &mockLedgerRepo{}
	repos := &repository.Repositories{
		Obligation: obligationRepo,
		Ledger:     ledgerRepo,
		Account:    &mockAccountRepo{},
		Loan:       &mockLoanRepo{},
	}
	loanSvc := NewLoanService(repos, nil, nil, nil)
	obligationSvc := NewObligationService(repos, nil, loanSvc, nil, nil, nil)

	userRepo := &mockUserRepo{
		mockFindAdmins: func(ctx context.Context) ([]models.User, error) {
			return []models.User{{ID: 1}}, nil
		},
	}
	notificationRepo := &mockNotificationRepo{}
	var alerts []models.Notification
	notificationRepo.mockCreate = func(ctx context.Context, n *models.Notification) error {
		alerts = append(alerts, *n)
		return nil
	}
	notificationSvc := NewNotificationService(notificationRepo, userRepo, nil)
	scheduler := NewSchedulerService(obligationSvc, notificationSvc, time.Minute)

	obligation := testObligation()
	obligationRepo.mockFindDue = func(ctx context.Context, asOf time.Time, automaticOnly bool) ([]models.Obligation, error) {
		return []models.Obligation{*obligation}, nil
	}
	obligationRepo.mockFindByID = func(ctx context.Context, id uint) (*models.Obligation, error) {
		return obligation, nil
	}
	ledgerRepo.mockCreate = func(ctx context.Context, e *models.LedgerEntry) error {
		return assert.AnError
	}

	result, err := scheduler.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, alerts, 1)
	assert.Equal(t, uint(1), alerts[0].UserID)
	assert.Contains(t, alerts[0].Message, "1 obligaciones")
}
