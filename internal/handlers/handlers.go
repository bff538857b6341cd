package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/sgavilanez/planea-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Loan         *LoanHandler
	Obligation   *ObligationHandler
	Account      *AccountHandler
	Budget       *BudgetHandler
	Scheduler    *SchedulerHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Loan:         NewLoanHandler(svcs.Loan),
		Obligation:   NewObligationHandler(svcs.Obligation),
		Account:      NewAccountHandler(svcs.Account),
		Budget:       NewBudgetHandler(svcs.Budget, svcs.Obligation),
		Scheduler:    NewSchedulerHandler(svcs.Scheduler),
		Notification: NewNotificationHandler(svcs.Notification),
		Audit:        NewAuditHandler(svcs.Audit),
		Job:          NewJobHandler(svcs.Job),
	}
}

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseListQuery reads the shared pagination and sorting params (page,
// per_page, sort_by, sort_dir) on top of the given defaults.
func parseListQuery(c *gin.Context, sortBy, sortDir string) *repository.ListQuery {
	q := repository.NewListQuery()
	q.SortBy = sortBy
	q.SortDir = sortDir

	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("per_page")); err == nil && perPage > 0 && perPage <= 200 {
		q.PerPage = perPage
	}
	if v := c.Query("sort_by"); v != "" {
		q.SortBy = v
	}
	if v := strings.ToLower(c.Query("sort_dir")); v == "asc" || v == "desc" {
		q.SortDir = v
	}
	return q
}

// splitCommaList splits a comma-separated query value, dropping empty parts
func splitCommaList(raw string) []string {
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// @Summary Health Check
// @Description Check if the API is running
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
