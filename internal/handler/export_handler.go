package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/models"
	"github.com/noah-isme/dat-progress-api/internal/service"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, accountID string, filter models.StudentFilter, format models.ExportFormat) (*models.ExportResult, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler renders roster exports and serves signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export godoc
// @Summary Export the filtered roster
// @Tags Exports
// @Produce json
// @Param format query string false "pdf (default) or csv"
// @Param licenseClass query string false "License class"
// @Param status query string false "Status"
// @Param search query string false "Search"
// @Param from query string false "Session date from"
// @Param to query string false "Session date to"
// @Success 201 {object} response.Envelope
// @Router /students/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := parseStudentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatPDF))))

	result, err := h.service.Export(c.Request.Context(), accountID, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	var size int64 = -1
	if info, statErr := result.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, contentType(result.Format), result.File, nil)
}

func contentType(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case models.ExportFormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}
