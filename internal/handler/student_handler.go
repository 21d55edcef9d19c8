package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/response"
)

type studentLedger interface {
	persistenceReporter
	ListStudents(ctx context.Context, accountID string, filter models.StudentFilter) ([]models.StudentView, *models.Pagination, error)
	GetStudent(ctx context.Context, accountID, studentID string) (*models.StudentView, error)
	AddStudent(ctx context.Context, accountID string, in models.StudentInput) (*models.StudentView, error)
	EditStudent(ctx context.Context, accountID, studentID string, in models.StudentInput) (*models.StudentView, error)
	DeleteStudent(ctx context.Context, accountID, studentID string) error
	ListSessions(ctx context.Context, accountID, studentID string) ([]models.Session, error)
	AddSession(ctx context.Context, accountID, studentID string, in models.SessionInput) (*models.Session, error)
	DeleteSession(ctx context.Context, accountID, studentID, sessionID string) error
}

// StudentHandler exposes roster and session endpoints.
type StudentHandler struct {
	ledger studentLedger
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(ledger studentLedger) *StudentHandler {
	return &StudentHandler{ledger: ledger}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param licenseClass query string false "License class (B1, B2, C1)"
// @Param status query string false "COMPLETED, ALMOST or IN_PROGRESS"
// @Param search query string false "Search by name or identifier"
// @Param from query string false "Session date from (YYYY-MM-DD)"
// @Param to query string false "Session date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
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

	students, pagination, err := h.ledger.ListStudents(c.Request.Context(), accountID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination, ledgerMeta(c, h.ledger, accountID))
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.ledger.GetStudent(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil, ledgerMeta(c, h.ledger, accountID))
}

// Create godoc
// @Summary Create student
// @Description Targets come from the license class requirements table
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.StudentInput true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var in models.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.ledger.AddStudent(c.Request.Context(), accountID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student, ledgerMeta(c, h.ledger, accountID))
}

// Update godoc
// @Summary Update student
// @Description Changing the license class resets the targets
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.StudentInput true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var in models.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.ledger.EditStudent(c.Request.Context(), accountID, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil, ledgerMeta(c, h.ledger, accountID))
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.ledger.DeleteStudent(c.Request.Context(), accountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSessions godoc
// @Summary List sessions of a student
// @Description Newest session date first
// @Tags Sessions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/sessions [get]
func (h *StudentHandler) ListSessions(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	sessions, err := h.ledger.ListSessions(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil, ledgerMeta(c, h.ledger, accountID))
}

// AddSession godoc
// @Summary Record a practice session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.SessionInput true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/sessions [post]
func (h *StudentHandler) AddSession(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var in models.SessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.ledger.AddSession(c.Request.Context(), accountID, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session, ledgerMeta(c, h.ledger, accountID))
}

// DeleteSession godoc
// @Summary Delete a session
// @Tags Sessions
// @Param id path string true "Student ID"
// @Param sessionId path string true "Session ID"
// @Success 204
// @Router /students/{id}/sessions/{sessionId} [delete]
func (h *StudentHandler) DeleteSession(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.ledger.DeleteSession(c.Request.Context(), accountID, c.Param("id"), c.Param("sessionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseStudentFilter(c *gin.Context) (models.StudentFilter, error) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := strings.TrimSpace(c.Query("licenseClass")); raw != "" {
		class, err := models.ParseLicenseClass(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid licenseClass")
		}
		filter.LicenseClass = class
	}
	filter.Status = models.StudentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}
	for _, pair := range []struct {
		key  string
		dest *string
	}{{"from", &filter.DateFrom}, {"to", &filter.DateTo}} {
		raw := strings.TrimSpace(c.Query(pair.key))
		if raw == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
		}
		*pair.dest = raw
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter, nil
}
