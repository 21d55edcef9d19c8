package models

// ClassDuration is a per-license-class override of the course dates.
type ClassDuration struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// CourseInfo describes one training cohort. Students is populated only on
// archived history entries.
type CourseInfo struct {
	ID           string                         `json:"id"`
	Name         string                         `json:"name"`
	AcademicYear string                         `json:"academicYear"`
	StartDate    string                         `json:"startDate"`
	EndDate      string                         `json:"endDate"`
	ClassDates   map[LicenseClass]ClassDuration `json:"classDates,omitempty"`
	ArchivedAt   string                         `json:"archivedAt,omitempty"`
	Students     []Student                      `json:"students,omitempty"`
}

// Clone deep-copies the course including class dates and roster.
func (c CourseInfo) Clone() CourseInfo {
	out := c
	if c.ClassDates != nil {
		out.ClassDates = make(map[LicenseClass]ClassDuration, len(c.ClassDates))
		for k, v := range c.ClassDates {
			out.ClassDates[k] = v
		}
	}
	if c.Students != nil {
		out.Students = CloneStudents(c.Students)
	}
	return out
}

// CloneStudents deep-copies a roster.
func CloneStudents(students []Student) []Student {
	if students == nil {
		return nil
	}
	out := make([]Student, len(students))
	for i, s := range students {
		out[i] = s.Clone()
	}
	return out
}

// CourseInput replaces the editable fields of the current course.
type CourseInput struct {
	Name         string                         `json:"name" validate:"required"`
	AcademicYear string                         `json:"academicYear"`
	StartDate    string                         `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string                         `json:"endDate" validate:"required,datetime=2006-01-02"`
	ClassDates   map[LicenseClass]ClassDuration `json:"classDates"`
}

// HistorySummary is a list row of an archived course.
type HistorySummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AcademicYear string `json:"academicYear"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ArchivedAt   string `json:"archivedAt,omitempty"`
	StudentCount int    `json:"studentCount"`
}
