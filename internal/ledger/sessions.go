package ledger

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

// Upper bounds of one logged drive.
const (
	MaxSessionKm      = 2000.0
	MaxSessionMinutes = 24 * 60
)

// AddSession records a drive for a student and recomputes its aggregates
// from the full session list.
func (l *Ledger) AddSession(studentID string, in models.SessionInput) (models.Session, error) {
	idx := l.indexOf(studentID)
	if idx < 0 {
		return models.Session{}, appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("student %q not found", studentID))
	}
	if !validSession(in.DistanceKm, in.DurationMinutes) {
		return models.Session{}, appErrors.ErrInvalidSessionValue
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return models.Session{}, appErrors.Clone(appErrors.ErrValidation, "session date must be YYYY-MM-DD")
	}

	session := models.Session{
		ID:              "SES" + strings.ToUpper(strings.ReplaceAll(l.newID(), "-", "")),
		StudentID:       studentID,
		Date:            in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DistanceKm:      in.DistanceKm,
		DurationMinutes: in.DurationMinutes,
		IsNight:         in.IsNight,
		IsAutomatic:     in.IsAutomatic,
		Notes:           strings.TrimSpace(in.Notes),
	}

	updated := l.students[idx].Clone()
	updated.Sessions = append([]models.Session{session}, updated.Sessions...)
	Recompute(&updated)
	if !finiteAggregates(updated) {
		return models.Session{}, appErrors.ErrInvalidSessionValue
	}
	l.students[idx] = updated
	return session, nil
}

// DeleteSession removes one session and recomputes the owner's aggregates.
// Unknown students or sessions are a no-op.
func (l *Ledger) DeleteSession(studentID, sessionID string) bool {
	idx := l.indexOf(studentID)
	if idx < 0 {
		return false
	}
	student := l.students[idx]
	pos := -1
	for i := range student.Sessions {
		if student.Sessions[i].ID == sessionID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}

	updated := student.Clone()
	updated.Sessions = append(updated.Sessions[:pos:pos], updated.Sessions[pos+1:]...)
	Recompute(&updated)
	l.students[idx] = updated
	return true
}

// Sessions returns a student's sessions ordered by date, newest first.
func (l *Ledger) Sessions(studentID string) ([]models.Session, bool) {
	student, ok := l.Student(studentID)
	if !ok {
		return nil, false
	}
	sessions := student.Sessions
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date > sessions[j].Date
	})
	return sessions, true
}

// Recompute sets the four current aggregates to the sums over s.Sessions,
// each rounded to one decimal.
func Recompute(s *models.Student) {
	var km float64
	var minutes, nightMinutes, autoMinutes int
	for _, sess := range s.Sessions {
		km += sess.DistanceKm
		minutes += sess.DurationMinutes
		if sess.IsNight {
			nightMinutes += sess.DurationMinutes
		}
		if sess.IsAutomatic {
			autoMinutes += sess.DurationMinutes
		}
	}
	s.CurrentKm = round1(km)
	s.CurrentHours = round1(float64(minutes) / 60)
	s.CurrentNightHours = round1(float64(nightMinutes) / 60)
	s.CurrentAutomaticHours = round1(float64(autoMinutes) / 60)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validSession(km float64, minutes int) bool {
	return positive(km) && km <= MaxSessionKm && minutes > 0 && minutes <= MaxSessionMinutes
}

func finiteAggregates(s models.Student) bool {
	for _, v := range []float64{s.CurrentKm, s.CurrentHours, s.CurrentNightHours, s.CurrentAutomaticHours} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
