package models

// NotificationType is the severity of a course notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is derived from the current course on every read.
type Notification struct {
	ID      string           `json:"id"`
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
	Date    string           `json:"date"`
}

// ExpiryLevel grades how close a class deadline is.
type ExpiryLevel string

const (
	ExpiryExpired  ExpiryLevel = "EXPIRED"
	ExpiryCritical ExpiryLevel = "CRITICAL"
	ExpiryWarning  ExpiryLevel = "WARNING"
)

// ExpiryNotice is the per-student deadline badge.
type ExpiryNotice struct {
	Level   ExpiryLevel `json:"level"`
	Days    int         `json:"days"`
	Label   string      `json:"label"`
	EndDate string      `json:"endDate"`
}
