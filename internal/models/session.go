package models

// Session is one logged practice drive. Sessions are never edited in place.
type Session struct {
	ID              string  `json:"id"`
	StudentID       string  `json:"studentId"`
	Date            string  `json:"date"`
	StartTime       string  `json:"startTime,omitempty"`
	EndTime         string  `json:"endTime,omitempty"`
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes int     `json:"durationMinutes"`
	IsNight         bool    `json:"isNight"`
	IsAutomatic     bool    `json:"isAutomatic"`
	Notes           string  `json:"notes,omitempty"`
}

// SessionInput describes a session-entry request.
type SessionInput struct {
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes int     `json:"durationMinutes"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string  `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime         string  `json:"endTime" validate:"omitempty,datetime=15:04"`
	IsNight         bool    `json:"isNight"`
	IsAutomatic     bool    `json:"isAutomatic"`
	Notes           string  `json:"notes" validate:"omitempty,max=500"`
}
