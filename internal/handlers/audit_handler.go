package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get one page of the audit trail, newest first. Admin only.
// @Tags Audit
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param per_page query int false "Page size (default 20, max 200)"
// @Param sort_by query string false "created_at, action or entity"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	q := parseListQuery(c, "created_at", "desc")

	logs, total, err := h.auditService.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":     logs,
		"total":    total,
		"page":     q.Page,
		"per_page": q.PerPage,
	})
}
