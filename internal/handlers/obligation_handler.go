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

type ObligationHandler struct {
	obligationService *services.ObligationService
}

func NewObligationHandler(obligationService *services.ObligationService) *ObligationHandler {
	return &ObligationHandler{obligationService: obligationService}
}

// CreateObligationRequest is the request body for registering an obligation
type CreateObligationRequest struct {
	Name             string          `json:"name" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category" binding:"required"`
	Subcategory      *string         `json:"subcategory"`
	Frequency        string          `json:"frequency" binding:"required"`
	StartDate        string          `json:"start_date" binding:"required"`
	ConfirmationMode string          `json:"confirmation_mode"`
	AccountID        *uint           `json:"account_id"`
	RepeatCount      *int            `json:"repeat_count"`
	Notes            *string         `json:"notes"`
	ApplyToBudget    bool            `json:"apply_to_budget"`
	BudgetMode       string          `json:"budget_mode"`
	BudgetMonth      int             `json:"budget_month"`
	BudgetYear       int             `json:"budget_year"`
}

// @Summary Create Obligation
// @Description Register a recurring or one-off obligation; optionally mirror it into the budget
// @Tags Obligations
// @Accept json
// @Produce json
// @Param request body CreateObligationRequest true "Obligation"
// @Success 201 {object} models.ObligationResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /obligations [post]
func (h *ObligationHandler) Create(c *gin.Context) {
	var req CreateObligationRequest
	if err := BindNestedOrFlat(c, "obligation", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date debe tener formato YYYY-MM-DD"})
		return
	}

	obligation, err := h.obligationService.Create(c.Request.Context(), services.CreateObligationInput{
		UserID:           middleware.GetUserID(c),
		Name:             req.Name,
		Amount:           req.Amount,
		Category:         req.Category,
		Subcategory:      req.Subcategory,
		Frequency:        req.Frequency,
		StartDate:        startDate,
		ConfirmationMode: req.ConfirmationMode,
		AccountID:        req.AccountID,
		RepeatCount:      req.RepeatCount,
		Notes:            req.Notes,
		ApplyToBudget:    req.ApplyToBudget,
		BudgetMode:       req.BudgetMode,
		BudgetMonth:      req.BudgetMonth,
		BudgetYear:       req.BudgetYear,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"obligation": obligation.ToResponse()})
}

// @Summary List Obligations
// @Description Get the current user's obligations, optionally filtered by category or active flag
// @Tags Obligations
// @Produce json
// @Param category query string false "Filter by category"
// @Param active query bool false "Only active obligations"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations [get]
func (h *ObligationHandler) Index(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	obligations, err := h.obligationService.FindByUser(c.Request.Context(), middleware.GetUserID(c), c.Query("category"), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(obligations))
	for i := range obligations {
		responses = append(responses, obligations[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"obligations": responses})
}

// @Summary Get Obligation
// @Description Get one obligation
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Success 200 {object} models.ObligationResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /obligations/{obligation_id} [get]
func (h *ObligationHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)
	obligation, err := h.obligationService.FindByID(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.obligationService.History(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation.ToResponse(), "entries": history})
}

// @Summary List Due Obligations
// @Description Get active obligations due on or before a date, overdue first
// @Tags Obligations
// @Produce json
// @Param until query string false "Cutoff date YYYY-MM-DD, default today"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations/due [get]
func (h *ObligationHandler) Due(c *gin.Context) {
	until := time.Now()
	if raw := c.Query("until"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until debe tener formato YYYY-MM-DD"})
			return
		}
		until = parsed
	}

	obligations, err := h.obligationService.ListDue(c.Request.Context(), middleware.GetUserID(c), until)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(obligations))
	for i := range obligations {
		responses = append(responses, obligations[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"obligations": responses})
}

// @Summary Preview Occurrences
// @Description Preview the next N due dates of an obligation
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Param count query int false "Number of occurrences" default(6)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations/{obligation_id}/occurrences [get]
func (h *ObligationHandler) Occurrences(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)
	count, _ := strconv.Atoi(c.DefaultQuery("count", "6"))

	dates, err := h.obligationService.Occurrences(c.Request.Context(), uint(id), middleware.GetUserID(c), count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occurrences": dates})
}

// @Summary Materialize Obligation
// @Description Confirm a due obligation now, turning it into a ledger entry and advancing its schedule
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /obligations/{obligation_id}/materialize [post]
func (h *ObligationHandler) Materialize(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)

	result, err := h.obligationService.Materialize(c.Request.Context(), uint(id), middleware.GetUserID(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"obligation": result.Obligation.ToResponse(),
		"entry":      result.Entry,
		"message":    "Obligación registrada",
	}
	if result.Payment != nil {
		response["loan"] = result.Payment.Loan.ToResponse()
		response["split"] = result.Payment.Split
	}
	c.JSON(http.StatusOK, response)
}

// UpdateObligationRequest carries the mutable obligation fields
type UpdateObligationRequest struct {
	Name             *string          `json:"name"`
	Amount           *decimal.Decimal `json:"amount"`
	Category         *string          `json:"category"`
	Subcategory      *string          `json:"subcategory"`
	ConfirmationMode *string          `json:"confirmation_mode"`
	AccountID        *uint            `json:"account_id"`
	Notes            *string          `json:"notes"`
}

// @Summary Update Obligation
// @Description Edit an obligation in place; loan-linked amounts are managed by the loan
// @Tags Obligations
// @Accept json
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Param request body UpdateObligationRequest true "Fields to update"
// @Success 200 {object} models.ObligationResponse
// @Security BearerAuth
// @Router /obligations/{obligation_id} [put]
func (h *ObligationHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)

	var req UpdateObligationRequest
	if err := BindNestedOrFlat(c, "obligation", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obligation, err := h.obligationService.Update(c.Request.Context(), uint(id), middleware.GetUserID(c), services.UpdateObligationInput{
		Name:             req.Name,
		Amount:           req.Amount,
		Category:         req.Category,
		Subcategory:      req.Subcategory,
		ConfirmationMode: req.ConfirmationMode,
		AccountID:        req.AccountID,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation.ToResponse()})
}

// @Summary Toggle Obligation
// @Description Flip the active flag; an inactive obligation never fires
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Success 200 {object} models.ObligationResponse
// @Security BearerAuth
// @Router /obligations/{obligation_id}/toggle [post]
func (h *ObligationHandler) Toggle(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)
	obligation, err := h.obligationService.ToggleActive(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation.ToResponse()})
}

// @Summary Delete Obligation
// @Description Delete an obligation, removing its budget contribution first
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /obligations/{obligation_id} [delete]
func (h *ObligationHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)
	if err := h.obligationService.Delete(c.Request.Context(), uint(id), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Obligación eliminada"})
}
