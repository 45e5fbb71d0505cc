package cron

import (
	"net/http"
	"time"

	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/service"
	"github.com/gin-gonic/gin"
)

// BillingHandler exposes the scheduler sweep as an on-demand HTTP trigger,
// complementing the in-process cron schedule.
type BillingHandler struct {
	sweeper service.SchedulerService
	log     *logger.Logger
}

func NewBillingHandler(sweeper service.SchedulerService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		sweeper: sweeper,
		log:     log,
	}
}

// Sweep runs one scheduler sweep immediately
func (h *BillingHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
