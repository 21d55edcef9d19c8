package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

// UpdateCourse replaces the editable fields of the current course. Classes
// without an override inherit the general dates.
func (l *Ledger) UpdateCourse(in models.CourseInput) (models.CourseInfo, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.CourseInfo{}, appErrors.Clone(appErrors.ErrValidation, "course name is required")
	}
	if err := checkRange(in.StartDate, in.EndDate); err != nil {
		return models.CourseInfo{}, err
	}
	for class, dates := range in.ClassDates {
		if !class.Valid() {
			return models.CourseInfo{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown license class %q", class))
		}
		if err := checkRange(dates.StartDate, dates.EndDate); err != nil {
			return models.CourseInfo{}, err
		}
	}

	updated := models.CourseInfo{
		ID:           l.course.ID,
		Name:         name,
		AcademicYear: strings.TrimSpace(in.AcademicYear),
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		ClassDates:   make(map[models.LicenseClass]models.ClassDuration, len(models.LicenseClasses)),
	}
	for class, dates := range in.ClassDates {
		updated.ClassDates[class] = dates
	}
	fillClassDates(&updated)

	l.course = updated
	return updated.Clone(), nil
}

// ArchiveCourse copies the current course and a deep copy of the roster into
// history. The live roster and course are left as they are.
func (l *Ledger) ArchiveCourse() models.CourseInfo {
	now := l.now()
	entry := l.course.Clone()
	entry.ID = l.nextHistoryID(now)
	entry.ArchivedAt = now.UTC().Format(time.RFC3339)
	entry.Students = models.CloneStudents(l.students)
	if entry.Students == nil {
		entry.Students = []models.Student{}
	}

	l.history = append([]models.CourseInfo{entry}, l.history...)
	return entry.Clone()
}

// DeleteHistory removes an archived course. It reports whether it existed.
func (l *Ledger) DeleteHistory(id string) bool {
	for i := range l.history {
		if l.history[i].ID == id {
			l.history = append(l.history[:i:i], l.history[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Ledger) nextHistoryID(now time.Time) string {
	stamp := now.UnixMilli()
	for {
		id := "h-" + strconv.FormatInt(stamp, 10)
		if !l.hasHistory(id) {
			return id
		}
		stamp++
	}
}

func (l *Ledger) hasHistory(id string) bool {
	for i := range l.history {
		if l.history[i].ID == id {
			return true
		}
	}
	return false
}

func checkRange(start, end string) error {
	startDate, err := time.Parse(DateLayout, start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start date must be YYYY-MM-DD")
	}
	endDate, err := time.Parse(DateLayout, end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end date must be YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}
	return nil
}

func fillClassDates(course *models.CourseInfo) {
	if course.ClassDates == nil {
		course.ClassDates = make(map[models.LicenseClass]models.ClassDuration, len(models.LicenseClasses))
	}
	for _, class := range models.LicenseClasses {
		dates := course.ClassDates[class]
		if dates.StartDate == "" {
			dates.StartDate = course.StartDate
		}
		if dates.EndDate == "" {
			dates.EndDate = course.EndDate
		}
		course.ClassDates[class] = dates
	}
}
