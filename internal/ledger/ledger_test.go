package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

var fixedNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	seq := 0
	l, err := New(DefaultState(DefaultCourse(fixedNow, "K24", "")), models.DefaultRequirements(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	require.NoError(t, err)
	return l
}

func addStudent(t *testing.T, l *Ledger, id string, class models.LicenseClass) models.Student {
	t.Helper()
	s, err := l.AddStudent(models.StudentInput{ID: id, FullName: "Nguyễn Văn An", LicenseClass: class, DateOfBirth: "2000-01-01", Phone: "0900"})
	require.NoError(t, err)
	return s
}

func addSession(t *testing.T, l *Ledger, studentID string, km float64, minutes int, night, auto bool) models.Session {
	t.Helper()
	sess, err := l.AddSession(studentID, models.SessionInput{DistanceKm: km, DurationMinutes: minutes, Date: "2024-01-01", IsNight: night, IsAutomatic: auto})
	require.NoError(t, err)
	return sess
}

func TestNewRejectsIncompleteRequirements(t *testing.T) {
	req := models.DefaultRequirements()
	delete(req, models.LicenseB2)
	_, err := New(models.LedgerState{}, req)
	assert.Error(t, err)
}

func TestAddStudentCopiesTargetsAndPrepends(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)
	s := addStudent(t, l, "SV002", models.LicenseB2)

	assert.Equal(t, 810.0, s.TargetKm)
	assert.Equal(t, 20.0, s.TargetHours)
	assert.Equal(t, 1.0, s.TargetNightHours)
	assert.Equal(t, 1.0, s.TargetAutomaticHours)
	assert.Zero(t, s.CurrentKm)
	assert.Empty(t, s.Sessions)
	assert.Contains(t, s.AvatarURL, "ui-avatars.com")

	roster := l.Students()
	require.Len(t, roster, 2)
	assert.Equal(t, "SV002", roster[0].ID)
}

func TestAddStudentGeneratesUniqueID(t *testing.T) {
	l := newTestLedger(t)
	seed := fmt.Sprintf("SV%04d", fixedNow.UnixMilli()%10000)
	addStudent(t, l, seed, models.LicenseB1)

	s, err := l.AddStudent(models.StudentInput{FullName: "Trần Bình", LicenseClass: models.LicenseC1})
	require.NoError(t, err)
	assert.NotEqual(t, seed, s.ID)
	assert.Regexp(t, `^SV\d{4}$`, s.ID)
}

func TestAddStudentRejectsDuplicateIdentifier(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)

	_, err := l.AddStudent(models.StudentInput{ID: "SV001", FullName: "Other", LicenseClass: models.LicenseB2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateIdentifier))
	assert.Len(t, l.Students(), 1)
}

func TestAddStudentValidatesInput(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.AddStudent(models.StudentInput{FullName: "  ", LicenseClass: models.LicenseB1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = l.AddStudent(models.StudentInput{FullName: "An", LicenseClass: "A1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, l.Students())
}

func TestEditStudentClassChangeResetsTargetsOnly(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB2)
	addSession(t, l, "SV001", 120.5, 90, true, true)
	before, _ := l.Student("SV001")

	after, err := l.EditStudent("SV001", models.StudentInput{ID: "SV001", FullName: before.FullName, LicenseClass: models.LicenseB1})
	require.NoError(t, err)

	assert.Equal(t, 710.0, after.TargetKm)
	assert.Equal(t, 12.0, after.TargetHours)
	assert.Equal(t, 1.0, after.TargetNightHours)
	assert.Equal(t, 0.0, after.TargetAutomaticHours)
	assert.Equal(t, before.CurrentKm, after.CurrentKm)
	assert.Equal(t, before.CurrentHours, after.CurrentHours)
	assert.Equal(t, before.CurrentNightHours, after.CurrentNightHours)
	assert.Equal(t, before.CurrentAutomaticHours, after.CurrentAutomaticHours)
	assert.Equal(t, before.Sessions, after.Sessions)
	assert.Equal(t, before.AvatarURL, after.AvatarURL)
}

func TestEditStudentKeepsTargetsWithoutClassChange(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB2)

	after, err := l.EditStudent("SV001", models.StudentInput{FullName: "Lê Chi", LicenseClass: models.LicenseB2, Phone: "0911"})
	require.NoError(t, err)
	assert.Equal(t, "SV001", after.ID)
	assert.Equal(t, 810.0, after.TargetKm)
	assert.Equal(t, "0911", after.Phone)
	assert.Contains(t, after.AvatarURL, "L%C3%AA+Chi")
}

func TestEditStudentRewritesSessionOwner(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)
	addSession(t, l, "SV001", 10, 60, false, false)
	addSession(t, l, "SV001", 20, 30, true, false)

	_, err := l.EditStudent("SV001", models.StudentInput{ID: "SV002", FullName: "An", LicenseClass: models.LicenseB1})
	require.NoError(t, err)

	_, ok := l.Student("SV001")
	assert.False(t, ok)
	s, ok := l.Student("SV002")
	require.True(t, ok)
	require.Len(t, s.Sessions, 2)
	for _, sess := range s.Sessions {
		assert.Equal(t, "SV002", sess.StudentID)
	}
	assert.Len(t, l.Students(), 1)
}

func TestEditStudentRejectsCollision(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)
	addStudent(t, l, "SV002", models.LicenseB2)
	before := l.Students()

	_, err := l.EditStudent("SV001", models.StudentInput{ID: "SV002", FullName: "Changed", LicenseClass: models.LicenseC1})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateIdentifier)
	assert.Equal(t, before, l.Students())

	_, err = l.EditStudent("SV404", models.StudentInput{FullName: "x", LicenseClass: models.LicenseB1})
	assert.ErrorIs(t, err, appErrors.ErrStudentNotFound)
}

func TestDeleteStudentIsNoOpWhenAbsent(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)

	assert.False(t, l.DeleteStudent("SV999"))
	assert.Len(t, l.Students(), 1)
	assert.True(t, l.DeleteStudent("SV001"))
	assert.Empty(t, l.Students())
}

func TestAccessorsReturnCopies(t *testing.T) {
	l := newTestLedger(t)
	addStudent(t, l, "SV001", models.LicenseB1)
	addSession(t, l, "SV001", 10, 60, false, false)

	roster := l.Students()
	roster[0].FullName = "mutated"
	roster[0].Sessions[0].DistanceKm = 999

	s, _ := l.Student("SV001")
	assert.Equal(t, "Nguyễn Văn An", s.FullName)
	assert.Equal(t, 10.0, s.Sessions[0].DistanceKm)
}
