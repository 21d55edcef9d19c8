package models

// Student is a trainee enrolled in one license class. Current* fields are
// derived from Sessions and must always equal their sums.
type Student struct {
	ID           string       `json:"id"`
	FullName     string       `json:"fullName"`
	LicenseClass LicenseClass `json:"licenseClass"`
	DateOfBirth  string       `json:"dateOfBirth"`
	Phone        string       `json:"phone"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`

	TargetKm             float64 `json:"targetKm"`
	TargetHours          float64 `json:"targetHours"`
	TargetNightHours     float64 `json:"targetNightHours"`
	TargetAutomaticHours float64 `json:"targetAutomaticHours"`

	CurrentKm             float64 `json:"currentKm"`
	CurrentHours          float64 `json:"currentHours"`
	CurrentNightHours     float64 `json:"currentNightHours"`
	CurrentAutomaticHours float64 `json:"currentAutomaticHours"`

	Sessions []Session `json:"sessions"`
}

// Clone returns a deep copy of the student.
func (s Student) Clone() Student {
	out := s
	if s.Sessions != nil {
		out.Sessions = make([]Session, len(s.Sessions))
		copy(out.Sessions, s.Sessions)
	}
	return out
}

// StudentInput carries the identity, class and contact fields of a student.
type StudentInput struct {
	ID           string       `json:"id"`
	FullName     string       `json:"fullName" validate:"required"`
	LicenseClass LicenseClass `json:"licenseClass" validate:"required"`
	DateOfBirth  string       `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Phone        string       `json:"phone" validate:"omitempty,max=32"`
}

// StudentStatus is the derived completion tier of a student.
type StudentStatus string

const (
	StatusCompleted  StudentStatus = "COMPLETED"
	StatusAlmostDone StudentStatus = "ALMOST"
	StatusInProgress StudentStatus = "IN_PROGRESS"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusAlmostDone, StatusInProgress:
		return true
	}
	return false
}

// StudentFilter narrows roster listings.
type StudentFilter struct {
	LicenseClass LicenseClass
	Status       StudentStatus
	Search       string
	DateFrom     string
	DateTo       string
	Page         int
	PageSize     int
}

// StudentView is a student enriched with read-time derivations.
type StudentView struct {
	Student
	Status       StudentStatus `json:"status"`
	ExpiryNotice *ExpiryNotice `json:"expiryNotice,omitempty"`
}
