package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

type fakeLedger struct {
	degraded bool

	lastAccount string
	lastFilter  models.StudentFilter
	lastInput   models.StudentInput
	lastSession models.SessionInput
	lastCourse  models.CourseInput
	deleted     []string

	students []models.StudentView
	student  *models.StudentView
	sessions []models.Session
	course   *models.CourseInfo
	history  []models.HistorySummary
	notes    []models.Notification
	err      error
	reloaded bool
}

func (f *fakeLedger) PersistenceMeta(string) map[string]interface{} {
	if f.degraded {
		return map[string]interface{}{"persistence": "degraded"}
	}
	return nil
}

func (f *fakeLedger) ListStudents(_ context.Context, accountID string, filter models.StudentFilter) ([]models.StudentView, *models.Pagination, error) {
	f.lastAccount = accountID
	f.lastFilter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(f.students)}, nil
}

func (f *fakeLedger) GetStudent(_ context.Context, accountID, studentID string) (*models.StudentView, error) {
	f.lastAccount = accountID
	if f.err != nil {
		return nil, f.err
	}
	return f.student, nil
}

func (f *fakeLedger) AddStudent(_ context.Context, accountID string, in models.StudentInput) (*models.StudentView, error) {
	f.lastAccount = accountID
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.StudentView{Student: models.Student{ID: in.ID, FullName: in.FullName, LicenseClass: in.LicenseClass}, Status: models.StatusInProgress}, nil
}

func (f *fakeLedger) EditStudent(_ context.Context, accountID, studentID string, in models.StudentInput) (*models.StudentView, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.StudentView{Student: models.Student{ID: studentID, FullName: in.FullName}}, nil
}

func (f *fakeLedger) DeleteStudent(_ context.Context, _ string, studentID string) error {
	f.deleted = append(f.deleted, studentID)
	return f.err
}

func (f *fakeLedger) ListSessions(context.Context, string, string) ([]models.Session, error) {
	return f.sessions, f.err
}

func (f *fakeLedger) AddSession(_ context.Context, _ string, studentID string, in models.SessionInput) (*models.Session, error) {
	f.lastSession = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Session{ID: "s-1", StudentID: studentID, Date: in.Date, DistanceKm: in.DistanceKm, DurationMinutes: in.DurationMinutes}, nil
}

func (f *fakeLedger) DeleteSession(_ context.Context, _ string, studentID, sessionID string) error {
	f.deleted = append(f.deleted, studentID+"/"+sessionID)
	return f.err
}

func (f *fakeLedger) Course(context.Context, string) (*models.CourseInfo, error) {
	return f.course, f.err
}

func (f *fakeLedger) UpdateCourse(_ context.Context, _ string, in models.CourseInput) (*models.CourseInfo, error) {
	f.lastCourse = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.CourseInfo{ID: "current", Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate}, nil
}

func (f *fakeLedger) ArchiveCourse(context.Context, string) (*models.CourseInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	archived := *f.course
	archived.ArchivedAt = "2024-03-01T00:00:00Z"
	return &archived, nil
}

func (f *fakeLedger) History(context.Context, string) ([]models.HistorySummary, error) {
	return f.history, f.err
}

func (f *fakeLedger) HistoryEntry(_ context.Context, _ string, id string) (*models.CourseInfo, error) {
	for _, h := range f.history {
		if h.ID == id {
			return &models.CourseInfo{ID: h.ID, Name: h.Name}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course history entry not found")
}

func (f *fakeLedger) DeleteHistory(_ context.Context, _ string, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeLedger) Notifications(context.Context, string) ([]models.Notification, error) {
	return f.notes, f.err
}

func (f *fakeLedger) Reload(context.Context, string) error {
	f.reloaded = true
	if f.err == nil {
		f.degraded = false
	}
	return f.err
}

func newStudentRouter(ledger *fakeLedger, accountID string) http.Handler {
	r := newTestRouter(accountID)
	h := NewStudentHandler(ledger)
	r.GET("/students", h.List)
	r.POST("/students", h.Create)
	r.GET("/students/:id", h.Get)
	r.PUT("/students/:id", h.Update)
	r.DELETE("/students/:id", h.Delete)
	r.GET("/students/:id/sessions", h.ListSessions)
	r.POST("/students/:id/sessions", h.AddSession)
	r.DELETE("/students/:id/sessions/:sessionId", h.DeleteSession)
	return r
}

func TestStudentHandlerListParsesFilter(t *testing.T) {
	ledger := &fakeLedger{students: []models.StudentView{{Student: models.Student{ID: "SV001"}}}}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodGet, "/students?licenseClass=b2&status=almost&search=%20an%20&from=2024-01-01&to=2024-01-31&page=2&limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc-1", ledger.lastAccount)
	assert.Equal(t, models.LicenseB2, ledger.lastFilter.LicenseClass)
	assert.Equal(t, models.StatusAlmostDone, ledger.lastFilter.Status)
	assert.Equal(t, "an", ledger.lastFilter.Search)
	assert.Equal(t, "2024-01-01", ledger.lastFilter.DateFrom)
	assert.Equal(t, "2024-01-31", ledger.lastFilter.DateTo)
	assert.Equal(t, 2, ledger.lastFilter.Page)
	assert.Equal(t, 5, ledger.lastFilter.PageSize)

	var students []models.StudentView
	env := decodeEnvelope(t, rec, &students)
	require.Len(t, students, 1)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	assert.Nil(t, env.Meta)
}

func TestStudentHandlerListRejectsBadFilters(t *testing.T) {
	r := newStudentRouter(&fakeLedger{}, "acc-1")

	for _, query := range []string{"licenseClass=Z9", "status=DONE", "from=01/02/2024"} {
		rec := doRequest(r, http.MethodGet, "/students?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestStudentHandlerRequiresAccount(t *testing.T) {
	r := newStudentRouter(&fakeLedger{}, "")

	rec := doRequest(r, http.MethodGet, "/students", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentHandlerCreate(t *testing.T) {
	ledger := &fakeLedger{}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodPost, "/students", map[string]interface{}{
		"id":           "SV001",
		"fullName":     "Nguyễn Văn An",
		"licenseClass": "B2",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Nguyễn Văn An", ledger.lastInput.FullName)
	assert.Equal(t, models.LicenseB2, ledger.lastInput.LicenseClass)
	var view models.StudentView
	decodeEnvelope(t, rec, &view)
	assert.Equal(t, "SV001", view.ID)
}

func TestStudentHandlerCreateDuplicate(t *testing.T) {
	ledger := &fakeLedger{err: appErrors.Clone(appErrors.ErrDuplicateIdentifier, "student SV001 already exists")}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodPost, "/students", map[string]interface{}{"id": "SV001", "fullName": "An", "licenseClass": "B1"})

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrDuplicateIdentifier.Code, env.Error.Code)
}

func TestStudentHandlerCreateRejectsMalformedBody(t *testing.T) {
	r := newStudentRouter(&fakeLedger{}, "acc-1")

	rec := doRequest(r, http.MethodPost, "/students", "not-an-object")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	ledger := &fakeLedger{err: appErrors.Clone(appErrors.ErrStudentNotFound, "student SV404 not found")}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodGet, "/students/SV404", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerDeletesAreNoContent(t *testing.T) {
	ledger := &fakeLedger{}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodDelete, "/students/SV001/sessions/s-9", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(r, http.MethodDelete, "/students/SV001", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{"SV001/s-9", "SV001"}, ledger.deleted)
}

func TestStudentHandlerAddSessionReportsDegradedStorage(t *testing.T) {
	ledger := &fakeLedger{degraded: true}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodPost, "/students/SV001/sessions", map[string]interface{}{
		"date":            "2024-01-02",
		"distanceKm":      42.5,
		"durationMinutes": 90,
		"isNight":         true,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 42.5, ledger.lastSession.DistanceKm)
	assert.True(t, ledger.lastSession.IsNight)
	env := decodeEnvelope(t, rec, nil)
	assert.Equal(t, "degraded", env.Meta["persistence"])
}

func TestStudentHandlerAddSessionInvalidValue(t *testing.T) {
	ledger := &fakeLedger{err: appErrors.Clone(appErrors.ErrInvalidSessionValue, "distance must not be negative")}
	r := newStudentRouter(ledger, "acc-1")

	rec := doRequest(r, http.MethodPost, "/students/SV001/sessions", map[string]interface{}{"date": "2024-01-02", "distanceKm": -1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
