package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

const (
	defaultCourseID   = "current"
	defaultCourseDays = 150
)

// class deadlines relative to the course start for a fresh account
var defaultClassDays = map[models.LicenseClass]int{
	models.LicenseB1: 92,
	models.LicenseB2: 123,
	models.LicenseC1: 150,
}

// storedStudent shadows the fields older blobs may omit.
type storedStudent struct {
	models.Student
	TargetKm              *float64 `json:"targetKm"`
	TargetHours           *float64 `json:"targetHours"`
	TargetNightHours      *float64 `json:"targetNightHours"`
	TargetAutomaticHours  *float64 `json:"targetAutomaticHours"`
	CurrentNightHours     *float64 `json:"currentNightHours"`
	CurrentAutomaticHours *float64 `json:"currentAutomaticHours"`
}

type storedState struct {
	Students      []storedStudent     `json:"students"`
	CourseInfo    *models.CourseInfo  `json:"courseInfo"`
	CourseHistory []models.CourseInfo `json:"courseHistory"`
}

// Migrate turns a persisted blob into a canonical state: missing targets come
// from the requirements table, missing per-class dates from the course dates,
// a missing course from defaultCourse, and every aggregate is recomputed from
// its sessions.
func Migrate(raw []byte, requirements models.Requirements, defaultCourse models.CourseInfo) (models.LedgerState, error) {
	var stored storedState
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.LedgerState{}, fmt.Errorf("decode ledger blob: %w", err)
	}

	state := models.LedgerState{
		Students:      make([]models.Student, 0, len(stored.Students)),
		CourseHistory: make([]models.CourseInfo, 0, len(stored.CourseHistory)),
	}
	for _, s := range stored.Students {
		state.Students = append(state.Students, migrateStudent(s, requirements))
	}

	if stored.CourseInfo != nil {
		state.CourseInfo = stored.CourseInfo.Clone()
		state.CourseInfo.Students = nil
	} else {
		state.CourseInfo = defaultCourse.Clone()
	}
	if state.CourseInfo.ID == "" {
		state.CourseInfo.ID = defaultCourseID
	}
	fillClassDates(&state.CourseInfo)

	for _, entry := range stored.CourseHistory {
		migrated := entry.Clone()
		fillClassDates(&migrated)
		if migrated.Students == nil {
			migrated.Students = []models.Student{}
		}
		state.CourseHistory = append(state.CourseHistory, migrated)
	}

	return state, nil
}

func migrateStudent(s storedStudent, requirements models.Requirements) models.Student {
	out := s.Student
	req, known := requirements.For(out.LicenseClass)

	out.TargetKm = pick(s.TargetKm, req.Km)
	out.TargetHours = pick(s.TargetHours, req.Hours)
	out.TargetNightHours = pick(s.TargetNightHours, req.NightHours)
	out.TargetAutomaticHours = pick(s.TargetAutomaticHours, req.AutomaticHours)
	if !known && s.TargetNightHours == nil {
		out.TargetNightHours = 1
	}

	sessions := make([]models.Session, 0, len(out.Sessions))
	for _, sess := range out.Sessions {
		if !validSession(sess.DistanceKm, sess.DurationMinutes) {
			continue
		}
		sess.StudentID = out.ID
		sessions = append(sessions, sess)
	}
	out.Sessions = sessions
	if out.AvatarURL == "" && out.FullName != "" {
		out.AvatarURL = AvatarURL(out.FullName)
	}
	Recompute(&out)
	return out
}

func pick(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// DefaultCourse is the course of an account with no saved data.
func DefaultCourse(today time.Time, name, academicYear string) models.CourseInfo {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if academicYear == "" {
		academicYear = fmt.Sprintf("Niên khóa %d - %d", start.Year(), start.Year()+1)
	}
	course := models.CourseInfo{
		ID:           defaultCourseID,
		Name:         name,
		AcademicYear: academicYear,
		StartDate:    start.Format(DateLayout),
		EndDate:      start.AddDate(0, 0, defaultCourseDays).Format(DateLayout),
		ClassDates:   make(map[models.LicenseClass]models.ClassDuration, len(defaultClassDays)),
	}
	for class, days := range defaultClassDays {
		course.ClassDates[class] = models.ClassDuration{
			StartDate: course.StartDate,
			EndDate:   start.AddDate(0, 0, days).Format(DateLayout),
		}
	}
	return course
}

// DefaultState is the state of an account with no saved data.
func DefaultState(course models.CourseInfo) models.LedgerState {
	return models.LedgerState{
		Students:      []models.Student{},
		CourseInfo:    course,
		CourseHistory: []models.CourseInfo{},
	}
}
