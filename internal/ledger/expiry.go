package ledger

import (
	"fmt"
	"time"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

// DateLayout is the calendar date format used in persisted data.
const DateLayout = "2006-01-02"

const (
	criticalDays = 7
	warningDays  = 15
)

// DaysUntil returns the number of calendar days from today to end.
func DaysUntil(end string, today time.Time) (int, error) {
	endDate, err := time.Parse(DateLayout, end)
	if err != nil {
		return 0, fmt.Errorf("parse end date %q: %w", end, err)
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDate.Sub(start).Hours() / 24), nil
}

// EffectiveEndDate prefers the class override over the general end date.
func EffectiveEndDate(course models.CourseInfo, class models.LicenseClass) string {
	if dates, ok := course.ClassDates[class]; ok && dates.EndDate != "" {
		return dates.EndDate
	}
	return course.EndDate
}

// ComputeExpiryNotice grades the class deadline of a course. It returns nil
// when the deadline is more than two weeks away or cannot be parsed.
func ComputeExpiryNotice(course models.CourseInfo, class models.LicenseClass, today time.Time) *models.ExpiryNotice {
	end := EffectiveEndDate(course, class)
	days, err := DaysUntil(end, today)
	if err != nil {
		return nil
	}
	switch {
	case days < 0:
		return &models.ExpiryNotice{Level: models.ExpiryExpired, Days: -days, Label: fmt.Sprintf("Quá hạn %d ngày", -days), EndDate: end}
	case days <= criticalDays:
		return &models.ExpiryNotice{Level: models.ExpiryCritical, Days: days, Label: fmt.Sprintf("Còn %d ngày", days), EndDate: end}
	case days <= warningDays:
		return &models.ExpiryNotice{Level: models.ExpiryWarning, Days: days, Label: fmt.Sprintf("Còn %d ngày", days), EndDate: end}
	}
	return nil
}

// CourseNotifications builds the course-wide banner from the general end date.
func CourseNotifications(course models.CourseInfo, today time.Time) []models.Notification {
	days, err := DaysUntil(course.EndDate, today)
	if err != nil {
		return []models.Notification{}
	}
	stamp := displayDate(today)
	switch {
	case days < 0:
		endDate, _ := time.Parse(DateLayout, course.EndDate)
		return []models.Notification{{
			ID:      "course-ended",
			Type:    models.NotificationError,
			Message: fmt.Sprintf("Khóa học %q đã kết thúc vào ngày %s.", course.Name, displayDate(endDate)),
			Date:    stamp,
		}}
	case days == 0:
		return []models.Notification{{
			ID:      "course-ending-soon",
			Type:    models.NotificationWarning,
			Message: fmt.Sprintf("Khóa học %q sẽ kết thúc HÔM NAY.", course.Name),
			Date:    stamp,
		}}
	case days <= criticalDays:
		return []models.Notification{{
			ID:      "course-ending-soon",
			Type:    models.NotificationWarning,
			Message: fmt.Sprintf("Cảnh báo: Khóa học %q chỉ còn %d ngày nữa là kết thúc.", course.Name, days),
			Date:    stamp,
		}}
	}
	return []models.Notification{}
}

func displayDate(t time.Time) string {
	return t.Format("2/1/2006")
}
