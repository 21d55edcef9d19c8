package dto

import "github.com/noah-isme/dat-progress-api/internal/models"

// DashboardResponse captures the aggregated training overview of one account.
type DashboardResponse struct {
	Date          string                `json:"date"`
	Totals        DashboardTotals       `json:"totals"`
	ByClass       []ClassCount          `json:"byClass"`
	Progress      []StudentProgressItem `json:"progress"`
	Course        models.CourseInfo     `json:"course"`
	Notifications []models.Notification `json:"notifications"`
	HistoryCount  int                   `json:"historyCount"`
}

// DashboardTotals counts students per status tier.
type DashboardTotals struct {
	Students   int `json:"students"`
	Completed  int `json:"completed"`
	Almost     int `json:"almost"`
	InProgress int `json:"inProgress"`
}

// ClassCount is one slice of the license class distribution.
type ClassCount struct {
	LicenseClass models.LicenseClass `json:"licenseClass"`
	Label        string              `json:"label"`
	Count        int                 `json:"count"`
}

// StudentProgressItem is one bar of the distance chart.
type StudentProgressItem struct {
	StudentID   string  `json:"studentId"`
	DisplayName string  `json:"displayName"`
	CurrentKm   float64 `json:"currentKm"`
	TargetKm    float64 `json:"targetKm"`
}
