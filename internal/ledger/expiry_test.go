package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

func TestComputeExpiryNoticeThresholds(t *testing.T) {
	today := time.Date(2024, 1, 1, 15, 45, 0, 0, time.UTC)
	tests := []struct {
		end   string
		level models.ExpiryLevel
		days  int
		label string
	}{
		{"2024-01-08", models.ExpiryCritical, 7, "Còn 7 ngày"},
		{"2024-01-01", models.ExpiryCritical, 0, "Còn 0 ngày"},
		{"2024-01-09", models.ExpiryWarning, 8, "Còn 8 ngày"},
		{"2024-01-16", models.ExpiryWarning, 15, "Còn 15 ngày"},
		{"2023-12-31", models.ExpiryExpired, 1, "Quá hạn 1 ngày"},
		{"2024-02-01", "", 0, ""},
		{"2024-01-17", "", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.end, func(t *testing.T) {
			notice := ComputeExpiryNotice(models.CourseInfo{EndDate: tc.end}, models.LicenseB1, today)
			if tc.level == "" {
				assert.Nil(t, notice)
				return
			}
			require.NotNil(t, notice)
			assert.Equal(t, tc.level, notice.Level)
			assert.Equal(t, tc.days, notice.Days)
			assert.Equal(t, tc.label, notice.Label)
			assert.Equal(t, tc.end, notice.EndDate)
		})
	}
}

func TestComputeExpiryNoticePrefersClassOverride(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	course := models.CourseInfo{
		EndDate: "2024-06-01",
		ClassDates: map[models.LicenseClass]models.ClassDuration{
			models.LicenseB1: {StartDate: "2023-10-01", EndDate: "2024-01-05"},
			models.LicenseC1: {StartDate: "2023-10-01"},
		},
	}

	notice := ComputeExpiryNotice(course, models.LicenseB1, today)
	require.NotNil(t, notice)
	assert.Equal(t, 4, notice.Days)

	assert.Nil(t, ComputeExpiryNotice(course, models.LicenseB2, today))
	assert.Nil(t, ComputeExpiryNotice(course, models.LicenseC1, today))
	assert.Nil(t, ComputeExpiryNotice(models.CourseInfo{EndDate: "garbage"}, models.LicenseB1, today))
}

func TestCourseNotifications(t *testing.T) {
	today := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	course := models.CourseInfo{
		Name:    "K24",
		EndDate: "2024-03-01",
		ClassDates: map[models.LicenseClass]models.ClassDuration{
			models.LicenseB1: {EndDate: "2023-12-01"},
		},
	}
	assert.Empty(t, CourseNotifications(course, today))

	course.EndDate = "2023-12-30"
	notes := CourseNotifications(course, today)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationError, notes[0].Type)
	assert.Equal(t, "course-ended", notes[0].ID)
	assert.Contains(t, notes[0].Message, "30/12/2023")
	assert.Equal(t, "1/1/2024", notes[0].Date)

	course.EndDate = "2024-01-01"
	notes = CourseNotifications(course, today)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationWarning, notes[0].Type)
	assert.Contains(t, notes[0].Message, "HÔM NAY")

	course.EndDate = "2024-01-08"
	notes = CourseNotifications(course, today)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "7 ngày")

	course.EndDate = "2024-01-09"
	assert.Empty(t, CourseNotifications(course, today))
}
