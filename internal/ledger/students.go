package ledger

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

const maxGeneratedStudentIDs = 10000

// AddStudent prepends a new student with zeroed progress and the targets of
// its license class.
func (l *Ledger) AddStudent(in models.StudentInput) (models.Student, error) {
	in = normaliseStudentInput(in)
	req, err := l.checkStudentInput(in)
	if err != nil {
		return models.Student{}, err
	}

	id := in.ID
	if id == "" {
		id = l.generateStudentID()
	} else if l.indexOf(id) >= 0 {
		return models.Student{}, duplicateID(id)
	}

	student := models.Student{
		ID:           id,
		FullName:     in.FullName,
		LicenseClass: in.LicenseClass,
		DateOfBirth:  in.DateOfBirth,
		Phone:        in.Phone,
		AvatarURL:    AvatarURL(in.FullName),
		Sessions:     []models.Session{},
	}
	applyTargets(&student, req)

	l.students = append([]models.Student{student}, l.students...)
	return student.Clone(), nil
}

// EditStudent replaces the identity, class and contact fields of a student.
// A class change resets all four targets; sessions are re-tagged with the new id.
func (l *Ledger) EditStudent(oldID string, in models.StudentInput) (models.Student, error) {
	idx := l.indexOf(oldID)
	if idx < 0 {
		return models.Student{}, appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("student %q not found", oldID))
	}

	in = normaliseStudentInput(in)
	if in.ID == "" {
		in.ID = oldID
	}
	req, err := l.checkStudentInput(in)
	if err != nil {
		return models.Student{}, err
	}
	if in.ID != oldID && l.indexOf(in.ID) >= 0 {
		return models.Student{}, duplicateID(in.ID)
	}

	updated := l.students[idx].Clone()
	if updated.LicenseClass != in.LicenseClass {
		applyTargets(&updated, req)
	}
	if updated.FullName != in.FullName || updated.AvatarURL == "" {
		updated.AvatarURL = AvatarURL(in.FullName)
	}
	updated.ID = in.ID
	updated.FullName = in.FullName
	updated.LicenseClass = in.LicenseClass
	updated.DateOfBirth = in.DateOfBirth
	updated.Phone = in.Phone
	for i := range updated.Sessions {
		updated.Sessions[i].StudentID = in.ID
	}

	l.students[idx] = updated
	return updated.Clone(), nil
}

// DeleteStudent removes a student with its sessions. It reports whether
// anything was removed.
func (l *Ledger) DeleteStudent(id string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.students = append(l.students[:idx:idx], l.students[idx+1:]...)
	return true
}

// AvatarURL builds the generated avatar link for a name.
func AvatarURL(fullName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(fullName) + "&background=random"
}

func (l *Ledger) checkStudentInput(in models.StudentInput) (models.Requirement, error) {
	if in.FullName == "" {
		return models.Requirement{}, appErrors.Clone(appErrors.ErrValidation, "full name is required")
	}
	req, ok := l.requirements.For(in.LicenseClass)
	if !ok {
		return models.Requirement{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown license class %q", in.LicenseClass))
	}
	return req, nil
}

// generateStudentID picks the first free SVnnnn id starting from the clock.
func (l *Ledger) generateStudentID() string {
	seed := int(l.now().UnixMilli() % maxGeneratedStudentIDs)
	for i := 0; i < maxGeneratedStudentIDs; i++ {
		candidate := fmt.Sprintf("SV%04d", (seed+i)%maxGeneratedStudentIDs)
		if l.indexOf(candidate) < 0 {
			return candidate
		}
	}
	return "SV" + strings.ToUpper(strings.ReplaceAll(l.newID(), "-", ""))
}

func applyTargets(s *models.Student, req models.Requirement) {
	s.TargetKm = req.Km
	s.TargetHours = req.Hours
	s.TargetNightHours = req.NightHours
	s.TargetAutomaticHours = req.AutomaticHours
}

func normaliseStudentInput(in models.StudentInput) models.StudentInput {
	in.ID = strings.TrimSpace(in.ID)
	in.FullName = strings.TrimSpace(in.FullName)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func duplicateID(id string) error {
	return appErrors.Clone(appErrors.ErrDuplicateIdentifier, fmt.Sprintf("student identifier %q already exists", id))
}
