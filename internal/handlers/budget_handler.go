package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/middleware"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/services"
)

type BudgetHandler struct {
	budgetService     *services.BudgetService
	obligationService *services.ObligationService
}

func NewBudgetHandler(budgetService *services.BudgetService, obligationService *services.ObligationService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, obligationService: obligationService}
}

func budgetYear(c *gin.Context) int {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year <= 0 {
		return time.Now().Year()
	}
	return year
}

// @Summary Budget Buckets
// @Description Get the twelve monthly buckets of a year with their obligation contributions
// @Tags Budget
// @Produce json
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /budget [get]
func (h *BudgetHandler) Index(c *gin.Context) {
	year := budgetYear(c)
	buckets, err := h.budgetService.Buckets(c.Request.Context(), middleware.GetUserID(c), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "buckets": buckets})
}

// ApplyBudgetRequest selects how a yearly obligation lands on the buckets
type ApplyBudgetRequest struct {
	Mode  string `json:"mode"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
}

// @Summary Apply Obligation to Budget
// @Description Project an obligation's amounts onto the monthly budget buckets
// @Tags Budget
// @Accept json
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Param request body ApplyBudgetRequest false "Budget mode"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations/{obligation_id}/budget [post]
func (h *BudgetHandler) Apply(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)

	var req ApplyBudgetRequest
	if c.Request.ContentLength > 0 {
		if err := BindNestedOrFlat(c, "budget", &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Year <= 0 {
		req.Year = time.Now().Year()
	}
	if req.Mode == "" {
		req.Mode = models.BudgetModeDivide
	}

	obligation, err := h.obligationService.FindByID(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.budgetService.Apply(c.Request.Context(), obligation, req.Mode, req.Month, req.Year); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation, "message": "Obligación aplicada al presupuesto"})
}

// @Summary Remove Obligation from Budget
// @Description Back out an obligation's contributions from the monthly buckets
// @Tags Budget
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations/{obligation_id}/budget [delete]
func (h *BudgetHandler) Remove(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("obligation_id"), 10, 32)

	obligation, err := h.obligationService.FindByID(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.budgetService.Remove(c.Request.Context(), obligation, budgetYear(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation, "message": "Obligación retirada del presupuesto"})
}
