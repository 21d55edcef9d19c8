package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/dto"
	"github.com/noah-isme/dat-progress-api/internal/middleware"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, accountID string) (*dto.DashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service  dashboardService
	reporter persistenceReporter
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, reporter persistenceReporter) *DashboardHandler {
	return &DashboardHandler{service: service, reporter: reporter}
}

// Summary godoc
// @Summary Training overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, ledgerMeta(c, h.reporter, accountID))
}
