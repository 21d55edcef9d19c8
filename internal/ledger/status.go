package ledger

import (
	"time"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

const almostDoneRatio = 0.8

// ClassifyStatus buckets a student by progress. Night and automatic hours
// only count towards completion, not towards the almost-done tier.
func ClassifyStatus(s models.Student) models.StudentStatus {
	if s.CurrentKm >= s.TargetKm &&
		s.CurrentHours >= s.TargetHours &&
		s.CurrentNightHours >= s.TargetNightHours &&
		(s.TargetAutomaticHours == 0 || s.CurrentAutomaticHours >= s.TargetAutomaticHours) {
		return models.StatusCompleted
	}
	if ratioReached(s.CurrentKm, s.TargetKm) || ratioReached(s.CurrentHours, s.TargetHours) {
		return models.StatusAlmostDone
	}
	return models.StatusInProgress
}

// zero targets count as reached
func ratioReached(current, target float64) bool {
	if target <= 0 {
		return true
	}
	return current/target >= almostDoneRatio
}

// View derives status and the deadline badge for one student. Completed
// students carry no badge.
func View(s models.Student, course models.CourseInfo, today time.Time) models.StudentView {
	view := models.StudentView{Student: s, Status: ClassifyStatus(s)}
	if view.Status != models.StatusCompleted {
		view.ExpiryNotice = ComputeExpiryNotice(course, s.LicenseClass, today)
	}
	return view
}
