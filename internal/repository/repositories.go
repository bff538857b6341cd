package repository

import (
	"strings"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Loan         LoanRepository
	Obligation   ObligationRepository
	Account      AccountRepository
	Ledger       LedgerRepository
	Budget       BudgetRepository
	Notification NotificationRepository
}

// NewRepositories creates all repository instances. Services that run atomic
// units call this again with the transaction handle so every repository in
// the unit shares one transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Loan:         NewLoanRepository(db),
		Obligation:   NewObligationRepository(db),
		Account:      NewAccountRepository(db),
		Ledger:       NewLedgerRepository(db),
		Budget:       NewBudgetRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

// ListQuery carries pagination, sorting and free-form filters for list
// endpoints.
type ListQuery struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery returns a ListQuery with sane defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		SortBy:  "created_at",
		SortDir: "desc",
		Filters: make(map[string]string),
	}
}

// OrderClause builds an ORDER BY fragment from the requested sort, accepting
// only the allowed column names. Anything else falls back to the first one.
func (q *ListQuery) OrderClause(allowed ...string) string {
	column := allowed[0]
	for _, name := range allowed {
		if q.SortBy == name {
			column = name
			break
		}
	}
	direction := "ASC"
	if strings.EqualFold(q.SortDir, "desc") {
		direction = "DESC"
	}
	return column + " " + direction
}

// Offset returns the row offset for the current page
func (q *ListQuery) Offset() int {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	return (q.Page - 1) * q.PerPage
}
