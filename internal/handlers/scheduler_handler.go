package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/services"
)

type SchedulerHandler struct {
	schedulerService *services.SchedulerService
}

func NewSchedulerHandler(schedulerService *services.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{schedulerService: schedulerService}
}

// @Summary Scheduler Status
// @Description Get the materialization daemon's state and sweep counters
// @Tags Scheduler
// @Produce json
// @Success 200 {object} services.SchedulerStatus
// @Security BearerAuth
// @Router /scheduler/status [get]
func (h *SchedulerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.schedulerService.Status())
}

// @Summary Start Scheduler
// @Description Start the periodic materialization loop
// @Tags Scheduler
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /scheduler/start [post]
func (h *SchedulerHandler) Start(c *gin.Context) {
	if err := h.schedulerService.Start(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Planificador iniciado", "status": h.schedulerService.Status()})
}

// @Summary Stop Scheduler
// @Description Stop the periodic materialization loop
// @Tags Scheduler
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /scheduler/stop [post]
func (h *SchedulerHandler) Stop(c *gin.Context) {
	h.schedulerService.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Planificador detenido", "status": h.schedulerService.Status()})
}

// @Summary Run Sweep Now
// @Description Run one materialization sweep immediately, outside the timer
// @Tags Scheduler
// @Produce json
// @Success 200 {object} services.SweepResult
// @Security BearerAuth
// @Router /scheduler/run [post]
func (h *SchedulerHandler) RunNow(c *gin.Context) {
	result, err := h.schedulerService.RunNow(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "status": h.schedulerService.Status()})
}
