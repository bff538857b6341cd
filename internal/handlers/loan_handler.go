package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/middleware"
	"github.com/sgavilanez/planea-api/internal/services"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	loanService *services.LoanService
}

func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// CreateLoanRequest is the request body for opening a loan
type CreateLoanRequest struct {
	Name             string          `json:"name" binding:"required"`
	Principal        decimal.Decimal `json:"principal"`
	AnnualRate       decimal.Decimal `json:"annual_rate"`
	DurationMonths   int             `json:"duration_months"`
	FirstPaymentDate string          `json:"first_payment_date" binding:"required"`
	AccountID        *uint           `json:"account_id"`
	Category         string          `json:"category"`
	Notes            *string         `json:"notes"`
}

// @Summary Create Loan
// @Description Open a loan; generates the amortization schedule and a companion monthly obligation
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body CreateLoanRequest true "Loan terms"
// @Success 201 {object} models.LoanResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req CreateLoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	firstPayment, err := time.Parse("2006-01-02", req.FirstPaymentDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_payment_date debe tener formato YYYY-MM-DD"})
		return
	}

	loan, err := h.loanService.Create(c.Request.Context(), services.CreateLoanInput{
		UserID:           middleware.GetUserID(c),
		Name:             req.Name,
		Principal:        req.Principal,
		AnnualRate:       req.AnnualRate,
		DurationMonths:   req.DurationMonths,
		FirstPaymentDate: firstPayment,
		AccountID:        req.AccountID,
		Category:         req.Category,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"loan": loan.ToResponse()})
}

// @Summary List Loans
// @Description Get the current user's loans
// @Tags Loans
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	loans, err := h.loanService.FindByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(loans))
	for i := range loans {
		responses = append(responses, loans[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"loans": responses})
}

// @Summary Get Loan
// @Description Get a loan with its full amortization schedule
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.GetDetails(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "installments": loan.Installments})
}

// RecordPaymentRequest is the request body for paying an installment. Zero or
// missing amount means the scheduled monthly payment.
type RecordPaymentRequest struct {
	PaymentNumber int             `json:"payment_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaidDate      string          `json:"paid_date"`
}

// @Summary Record Payment
// @Description Apply a payment to an installment; off-schedule amounts re-amortize the remaining schedule
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body RecordPaymentRequest false "Payment details"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/payments [post]
func (h *LoanHandler) RecordPayment(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	var req RecordPaymentRequest
	if err := BindNestedOrFlat(c, "payment", &req); err != nil {
		// empty body means scheduled payment on the next pending row
	}

	paidDate := time.Now()
	if req.PaidDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PaidDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paid_date debe tener formato YYYY-MM-DD"})
			return
		}
		paidDate = parsed
	}

	outcome, err := h.loanService.RecordPayment(c.Request.Context(), uint(id), middleware.GetUserID(c), req.PaymentNumber, req.Amount, paidDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loan":        outcome.Loan.ToResponse(),
		"installment": outcome.Installment,
		"split":       outcome.Split,
		"paid_off":    outcome.PaidOff,
		"message":     "Pago registrado",
	})
}

// @Summary Skip Payment
// @Description Push every unpaid installment one month forward
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/skip [post]
func (h *LoanHandler) Skip(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.SkipPayment(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Cuotas desplazadas un mes"})
}

// @Summary Payoff Loan
// @Description Settle the remaining balance in one penalty-free payment
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/payoff [post]
func (h *LoanHandler) Payoff(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	outcome, err := h.loanService.Payoff(c.Request.Context(), uint(id), middleware.GetUserID(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": outcome.Loan.ToResponse(), "message": "Préstamo liquidado"})
}

// @Summary Simulate Payoff
// @Description Compare paying the loan off early at one or more target installments
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param months query string false "Comma-separated target months, default 1"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/simulate_payoff [get]
func (h *LoanHandler) SimulatePayoff(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	targets := []int{1}
	if raw := c.Query("months"); raw != "" {
		targets = targets[:0]
		for _, part := range splitCommaList(raw) {
			month, err := strconv.Atoi(part)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "months debe ser una lista de enteros"})
				return
			}
			targets = append(targets, month)
		}
	}

	simulations, err := h.loanService.SimulatePayoff(c.Request.Context(), uint(id), middleware.GetUserID(c), targets)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulations": simulations})
}

// UpdateLoanRequest carries the mutable loan metadata
type UpdateLoanRequest struct {
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	Notes     *string `json:"notes"`
	AccountID *uint   `json:"account_id"`
}

// @Summary Update Loan
// @Description Update loan metadata; financial terms are immutable
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body UpdateLoanRequest true "Metadata"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id} [put]
func (h *LoanHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	var req UpdateLoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.loanService.Update(c.Request.Context(), uint(id), middleware.GetUserID(c), services.UpdateLoanInput{
		Name:      req.Name,
		Category:  req.Category,
		Notes:     req.Notes,
		AccountID: req.AccountID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse()})
}

// @Summary Delete Loan
// @Description Delete a loan, its schedule and its companion obligation
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	if err := h.loanService.Delete(c.Request.Context(), uint(id), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Préstamo eliminado"})
}
