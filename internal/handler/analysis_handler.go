package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/response"
)

type analysisService interface {
	Request(ctx context.Context, accountID, studentID string) (*models.AnalysisJob, error)
	Get(ctx context.Context, accountID, jobID string) (*models.AnalysisJob, error)
}

// AnalysisHandler exposes the narrative advisor.
type AnalysisHandler struct {
	service analysisService
}

// NewAnalysisHandler constructs the handler.
func NewAnalysisHandler(service analysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// Request godoc
// @Summary Request progress commentary
// @Description Queues an advisor call for a snapshot of the student; poll the returned job
// @Tags Analysis
// @Produce json
// @Param id path string true "Student ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/analysis [post]
func (h *AnalysisHandler) Request(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.service.Request(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Get godoc
// @Summary Poll progress commentary
// @Tags Analysis
// @Produce json
// @Param id path string true "Analysis job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) Get(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.service.Get(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
