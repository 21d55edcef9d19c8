// Package ledger holds the progress ledger of one account: the student roster,
// each student's sessions, the current course and the archived course history.
//
// A Ledger is not safe for concurrent use; callers serialise access.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

// Ledger is the authoritative in-memory state of one account.
type Ledger struct {
	requirements models.Requirements
	students     []models.Student
	course       models.CourseInfo
	history      []models.CourseInfo

	now   func() time.Time
	newID func() string
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for ids and archive stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides the random id source used for session ids.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// New builds a ledger from a canonical state. The state is copied.
func New(state models.LedgerState, requirements models.Requirements, opts ...Option) (*Ledger, error) {
	if err := requirements.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		requirements: requirements,
		students:     models.CloneStudents(state.Students),
		course:       state.CourseInfo.Clone(),
		history:      cloneCourses(state.CourseHistory),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.students == nil {
		l.students = []models.Student{}
	}
	if l.history == nil {
		l.history = []models.CourseInfo{}
	}
	return l, nil
}

// Requirements returns the target table the ledger was built with.
func (l *Ledger) Requirements() models.Requirements {
	return l.requirements
}

// Students returns a copy of the roster, most recently added first.
func (l *Ledger) Students() []models.Student {
	return models.CloneStudents(l.students)
}

// Student returns a copy of one student.
func (l *Ledger) Student(id string) (models.Student, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return models.Student{}, false
	}
	return l.students[idx].Clone(), true
}

// Course returns a copy of the current course.
func (l *Ledger) Course() models.CourseInfo {
	return l.course.Clone()
}

// History returns a copy of the archived courses, most recent first.
func (l *Ledger) History() []models.CourseInfo {
	return cloneCourses(l.history)
}

// HistoryEntry returns a copy of one archived course.
func (l *Ledger) HistoryEntry(id string) (models.CourseInfo, bool) {
	for _, entry := range l.history {
		if entry.ID == id {
			return entry.Clone(), true
		}
	}
	return models.CourseInfo{}, false
}

// State returns a deep copy suitable for persisting.
func (l *Ledger) State() models.LedgerState {
	return models.LedgerState{
		Students:      l.Students(),
		CourseInfo:    l.Course(),
		CourseHistory: l.History(),
	}
}

func (l *Ledger) indexOf(id string) int {
	for i := range l.students {
		if l.students[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneCourses(courses []models.CourseInfo) []models.CourseInfo {
	if courses == nil {
		return nil
	}
	out := make([]models.CourseInfo, len(courses))
	for i, c := range courses {
		out[i] = c.Clone()
	}
	return out
}
