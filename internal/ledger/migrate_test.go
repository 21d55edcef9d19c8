package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

func TestMigrateFillsMissingFields(t *testing.T) {
	raw := `{
	  "students": [{
	    "id": "SV001", "fullName": "Phạm Dũng", "licenseClass": "B cơ khí",
	    "targetKm": 810, "targetHours": 20, "currentKm": 99, "currentHours": 9,
	    "sessions": [
	      {"id": "SES1", "studentId": "OLD", "date": "2023-11-01", "distanceKm": 12.5, "durationMinutes": 90},
	      {"id": "SES2", "studentId": "SV001", "date": "2023-11-02", "distanceKm": 3, "durationMinutes": 30, "isNight": true}
	    ]
	  }],
	  "courseInfo": {"id": "current", "name": "K24", "academicYear": "2023", "startDate": "2023-10-05", "endDate": "2024-03-05"}
	}`
	defaults := DefaultCourse(fixedNow, "Default", "")

	state, err := Migrate([]byte(raw), models.DefaultRequirements(), defaults)
	require.NoError(t, err)

	require.Len(t, state.Students, 1)
	s := state.Students[0]
	assert.Equal(t, models.LicenseB2, s.LicenseClass)
	assert.Equal(t, 1.0, s.TargetNightHours)
	assert.Equal(t, 1.0, s.TargetAutomaticHours)
	assert.Equal(t, 15.5, s.CurrentKm)
	assert.Equal(t, 2.0, s.CurrentHours)
	assert.Equal(t, 0.5, s.CurrentNightHours)
	assert.Zero(t, s.CurrentAutomaticHours)
	assert.False(t, s.Sessions[0].IsNight)
	assert.Equal(t, "SV001", s.Sessions[0].StudentID)
	assert.NotEmpty(t, s.AvatarURL)

	assert.Equal(t, "K24", state.CourseInfo.Name)
	for _, class := range models.LicenseClasses {
		assert.Equal(t, "2024-03-05", state.CourseInfo.ClassDates[class].EndDate)
		assert.Equal(t, "2023-10-05", state.CourseInfo.ClassDates[class].StartDate)
	}
	assert.NotNil(t, state.CourseHistory)
	assert.Empty(t, state.CourseHistory)
}

func TestMigrateKeepsExplicitTargets(t *testing.T) {
	raw := `{"students":[{"id":"SV1","fullName":"A","licenseClass":"B1","targetKm":1,"targetHours":2,"targetNightHours":0,"targetAutomaticHours":3}]}`
	state, err := Migrate([]byte(raw), models.DefaultRequirements(), DefaultCourse(fixedNow, "D", ""))
	require.NoError(t, err)

	s := state.Students[0]
	assert.Equal(t, 1.0, s.TargetKm)
	assert.Equal(t, 0.0, s.TargetNightHours)
	assert.Equal(t, 3.0, s.TargetAutomaticHours)
	assert.NotNil(t, s.Sessions)
}

func TestMigrateDefaultsMissingCourseAndKeepsHistory(t *testing.T) {
	raw := `{"students":[],"courseHistory":[{"id":"h1","name":"K23","startDate":"2022-10-05","endDate":"2023-02-05","classDates":{"B tự động":{"startDate":"2022-10-05","endDate":"2023-01-05"}}}]}`
	defaults := DefaultCourse(fixedNow, "Default", "")

	state, err := Migrate([]byte(raw), models.DefaultRequirements(), defaults)
	require.NoError(t, err)

	assert.Equal(t, defaults, state.CourseInfo)
	require.Len(t, state.CourseHistory, 1)
	h := state.CourseHistory[0]
	assert.Equal(t, "2023-01-05", h.ClassDates[models.LicenseB1].EndDate)
	assert.Equal(t, "2023-02-05", h.ClassDates[models.LicenseC1].EndDate)
	assert.NotNil(t, h.Students)
}

func TestMigrateDropsOutOfRangeSessions(t *testing.T) {
	raw := `{"students": [{
	  "id": "SV001", "fullName": "An", "licenseClass": "B1",
	  "sessions": [
	    {"id": "SES1", "date": "2024-01-01", "distanceKm": 1e308, "durationMinutes": 60},
	    {"id": "SES2", "date": "2024-01-02", "distanceKm": 4, "durationMinutes": 0},
	    {"id": "SES3", "date": "2024-01-03", "distanceKm": 6.5, "durationMinutes": 30}
	  ]
	}]}`

	state, err := Migrate([]byte(raw), models.DefaultRequirements(), DefaultCourse(fixedNow, "Default", ""))
	require.NoError(t, err)

	s := state.Students[0]
	require.Len(t, s.Sessions, 1)
	assert.Equal(t, "SES3", s.Sessions[0].ID)
	assert.Equal(t, 6.5, s.CurrentKm)
	assert.Equal(t, 0.5, s.CurrentHours)
}

func TestMigrateRejectsGarbage(t *testing.T) {
	_, err := Migrate([]byte("{not json"), models.DefaultRequirements(), models.CourseInfo{})
	assert.Error(t, err)
}

func TestDefaultCourse(t *testing.T) {
	course := DefaultCourse(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), "K", "")
	assert.Equal(t, "current", course.ID)
	assert.Equal(t, "2024-01-01", course.StartDate)
	assert.Equal(t, "2024-05-30", course.EndDate)
	assert.Equal(t, "2024-04-02", course.ClassDates[models.LicenseB1].EndDate)
	assert.Equal(t, "2024-05-03", course.ClassDates[models.LicenseB2].EndDate)
	assert.Equal(t, "2024-05-30", course.ClassDates[models.LicenseC1].EndDate)
	assert.Equal(t, "Niên khóa 2024 - 2025", course.AcademicYear)
}
