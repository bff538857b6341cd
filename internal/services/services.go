package services

import (
	"github.com/sgavilanez/planea-api/internal/config"
	"github.com/sgavilanez/planea-api/internal/jobs"
	"github.com/sgavilanez/planea-api/internal/repository"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Account      *AccountService
	Loan         *LoanService
	Obligation   *ObligationService
	Budget       *BudgetService
	Scheduler    *SchedulerService
	Notification *NotificationService
	Audit        *AuditService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, cfg *config.Config, db *gorm.DB) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User, worker)
	auditSvc := NewAuditService(db, worker)

	accountSvc := NewAccountService(repos, db, auditSvc)
	loanSvc := NewLoanService(repos, db, notificationSvc, auditSvc)
	budgetSvc := NewBudgetService(repos, db)
	obligationSvc := NewObligationService(repos, db, loanSvc, budgetSvc, notificationSvc, auditSvc)
	schedulerSvc := NewSchedulerService(obligationSvc, notificationSvc, cfg.SchedulerInterval)

	return &Services{
		Account:      accountSvc,
		Loan:         loanSvc,
		Obligation:   obligationSvc,
		Budget:       budgetSvc,
		Scheduler:    schedulerSvc,
		Notification: notificationSvc,
		Audit:        auditSvc,
		Job:          NewJobService(worker),
	}
}
