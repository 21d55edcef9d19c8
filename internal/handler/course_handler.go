package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/response"
)

type courseLedger interface {
	persistenceReporter
	Course(ctx context.Context, accountID string) (*models.CourseInfo, error)
	UpdateCourse(ctx context.Context, accountID string, in models.CourseInput) (*models.CourseInfo, error)
	ArchiveCourse(ctx context.Context, accountID string) (*models.CourseInfo, error)
	History(ctx context.Context, accountID string) ([]models.HistorySummary, error)
	HistoryEntry(ctx context.Context, accountID, id string) (*models.CourseInfo, error)
	DeleteHistory(ctx context.Context, accountID, id string) error
	Notifications(ctx context.Context, accountID string) ([]models.Notification, error)
	Reload(ctx context.Context, accountID string) error
}

// CourseHandler exposes the current course, its history and notifications.
type CourseHandler struct {
	ledger courseLedger
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(ledger courseLedger) *CourseHandler {
	return &CourseHandler{ledger: ledger}
}

// Get godoc
// @Summary Current course
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /course [get]
func (h *CourseHandler) Get(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	course, err := h.ledger.Course(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil, ledgerMeta(c, h.ledger, accountID))
}

// Update godoc
// @Summary Update current course
// @Tags Course
// @Accept json
// @Produce json
// @Param payload body models.CourseInput true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /course [put]
func (h *CourseHandler) Update(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var in models.CourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.ledger.UpdateCourse(c.Request.Context(), accountID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil, ledgerMeta(c, h.ledger, accountID))
}

// Archive godoc
// @Summary Archive current course
// @Description Snapshots the course and roster into history; the live roster is kept
// @Tags Course
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /course/archive [post]
func (h *CourseHandler) Archive(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.ledger.ArchiveCourse(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry, ledgerMeta(c, h.ledger, accountID))
}

// History godoc
// @Summary Archived courses
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /course/history [get]
func (h *CourseHandler) History(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.ledger.History(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, ledgerMeta(c, h.ledger, accountID))
}

// HistoryDetail godoc
// @Summary Archived course with its roster
// @Tags Course
// @Produce json
// @Param id path string true "History entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course/history/{id} [get]
func (h *CourseHandler) HistoryDetail(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.ledger.HistoryEntry(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil, ledgerMeta(c, h.ledger, accountID))
}

// DeleteHistory godoc
// @Summary Delete archived course
// @Tags Course
// @Param id path string true "History entry ID"
// @Success 204
// @Router /course/history/{id} [delete]
func (h *CourseHandler) DeleteHistory(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.ledger.DeleteHistory(c.Request.Context(), accountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Notifications godoc
// @Summary Course deadline notifications
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *CourseHandler) Notifications(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	notes, err := h.ledger.Notifications(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil, ledgerMeta(c, h.ledger, accountID))
}

// Reload godoc
// @Summary Reload ledger from storage
// @Description Discards in-memory state and leaves degraded mode when storage is back
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ledger/reload [post]
func (h *CourseHandler) Reload(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.ledger.Reload(c.Request.Context(), accountID); err != nil {
		response.Error(c, err)
		return
	}
	persistence := "ok"
	if meta := h.ledger.PersistenceMeta(accountID); meta != nil {
		persistence = "degraded"
	}
	response.JSON(c, http.StatusOK, gin.H{"persistence": persistence}, nil, ledgerMeta(c, h.ledger, accountID))
}
