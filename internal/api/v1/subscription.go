package v1

import (
	"net/http"

	"github.com/flexprice/rebill/internal/api/dto"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/service"
	"github.com/flexprice/rebill/internal/types"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	periods service.BillingPeriodService
	runs    service.BillingRunService
	log     *logger.Logger
}

func NewSubscriptionHandler(
	service service.SubscriptionService,
	periods service.BillingPeriodService,
	runs service.BillingRunService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		periods: periods,
		runs:    runs,
		log:     log,
	}
}

func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filter types.SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCurrentPeriod returns the in-progress billing period of a subscription
func (h *SubscriptionHandler) GetCurrentPeriod(c *gin.Context) {
	period, err := h.periods.GetCurrent(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, period)
}

// ListPeriods returns all billing periods of a subscription in time order
func (h *SubscriptionHandler) ListPeriods(c *gin.Context) {
	periods, err := h.periods.ListBySubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": periods, "total": len(periods)})
}

// ListRuns returns all billing runs of a billing period
func (h *SubscriptionHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListByPeriod(c.Request.Context(), c.Param("period_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": runs, "total": len(runs)})
}

// ListPayments returns all payments made against a subscription
func (h *SubscriptionHandler) ListPayments(c *gin.Context) {
	payments, err := h.service.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": payments, "total": len(payments)})
}
