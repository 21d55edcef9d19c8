package ledger

import (
	"strings"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

// Matches reports whether a student passes every set criterion of f. A date
// range only matches students with at least one session inside it.
func Matches(s models.Student, f models.StudentFilter) bool {
	if f.LicenseClass != "" && s.LicenseClass != f.LicenseClass {
		return false
	}
	if f.Status != "" && ClassifyStatus(s) != f.Status {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(s.FullName), term) && !strings.Contains(strings.ToLower(s.ID), term) {
			return false
		}
	}
	if f.DateFrom != "" || f.DateTo != "" {
		return hasSessionBetween(s.Sessions, f.DateFrom, f.DateTo)
	}
	return true
}

// Filter returns the students matching f, keeping roster order.
func Filter(students []models.Student, f models.StudentFilter) []models.Student {
	out := make([]models.Student, 0, len(students))
	for _, s := range students {
		if Matches(s, f) {
			out = append(out, s)
		}
	}
	return out
}

// ISO dates compare lexically
func hasSessionBetween(sessions []models.Session, from, to string) bool {
	for _, sess := range sessions {
		if from != "" && sess.Date < from {
			continue
		}
		if to != "" && sess.Date > to {
			continue
		}
		return true
	}
	return false
}
