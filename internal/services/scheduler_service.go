package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sgavilanez/planea-api/pkg/logger"
)

// SchedulerService is the periodic driver that fires due automatic
// obligations. It is an explicit object owned by the process entry point; all
// of its state lives here, nothing is ambient.
type SchedulerService struct {
	obligationSvc   *ObligationService
	notificationSvc *NotificationService
	interval        time.Duration

	mu            sync.Mutex
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	lastRunAt     *time.Time
	lastProcessed int
	lastFailed    int
	totalSweeps   int64
}

// SchedulerStatus is a snapshot of the daemon's state
type SchedulerStatus struct {
	Running       bool           `json:"running"`
	Interval      string         `json:"interval"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty"`
	LastProcessed int            `json:"last_processed"`
	LastFailed    int            `json:"last_failed"`
	TotalSweeps   int64          `json:"total_sweeps"`
}

func NewSchedulerService(obligationSvc *ObligationService, notificationSvc *NotificationService, interval time.Duration) *SchedulerService {
	return &SchedulerService{
		obligationSvc:   obligationSvc,
		notificationSvc: notificationSvc,
		interval:        interval,
	}
}

// Start launches the periodic sweep loop. The first sweep runs immediately;
// subsequent ones follow the configured interval.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("el planificador ya está en ejecución: %w", ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)

	logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish, so an
// atomic materialization unit is never abandoned halfway.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	logger.Info("scheduler stopped")
}

// Status returns a snapshot of the daemon's counters
func (s *SchedulerService) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStatus{
		Running:       s.running,
		Interval:      s.interval.String(),
		LastRunAt:     s.lastRunAt,
		LastProcessed: s.lastProcessed,
		LastFailed:    s.lastFailed,
		TotalSweeps:   s.totalSweeps,
	}
}

// RunNow triggers one sweep outside the timer, for manual testing and for the
// admin surface.
func (s *SchedulerService) RunNow(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx)
}

func (s *SchedulerService) loop(ctx context.Context) {
	defer close(s.done)

	if _, err := s.sweep(ctx); err != nil {
		logger.Error("scheduler sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx); err != nil {
				logger.Error("scheduler sweep failed", "error", err)
				sentry.CaptureException(err)
			}
		}
	}
}

// sweep fires every due automatic obligation once. Per-obligation failures
// are already isolated inside MaterializeDue; only a failure to even list the
// due obligations surfaces as an error here.
func (s *SchedulerService) sweep(ctx context.Context) (*SweepResult, error) {
	now := time.Now()

	result, err := s.obligationSvc.MaterializeDue(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, itemErr := range result.Errors {
		sentry.CaptureException(itemErr)
	}

	if result.Failed > 0 && s.notificationSvc != nil {
		if err := s.notificationSvc.NotifyAdmins(ctx,
			"Barrido del planificador con errores",
			fmt.Sprintf("%d obligaciones no pudieron materializarse", result.Failed),
			"scheduler_failure"); err != nil {
			logger.Error("failed to notify admins about sweep failures", "error", err)
		}
	}

	s.mu.Lock()
	s.lastRunAt = &now
	s.lastProcessed = result.Processed
	s.lastFailed = result.Failed
	s.totalSweeps++
	s.mu.Unlock()

	if result.Processed > 0 || result.Failed > 0 {
		logger.Info("scheduler sweep finished", "processed", result.Processed, "failed", result.Failed)
	}

	return result, nil
}
