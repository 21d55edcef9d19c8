package models

import "time"

// AnalysisStatus captures advisor job lifecycle states.
type AnalysisStatus string

const (
	AnalysisQueued     AnalysisStatus = "QUEUED"
	AnalysisProcessing AnalysisStatus = "PROCESSING"
	AnalysisFinished   AnalysisStatus = "FINISHED"
	AnalysisDiscarded  AnalysisStatus = "DISCARDED"
)

// AnalysisJob tracks one narrative advisor request.
type AnalysisJob struct {
	ID         string         `json:"id"`
	AccountID  string         `json:"-"`
	StudentID  string         `json:"studentId"`
	Status     AnalysisStatus `json:"status"`
	Text       string         `json:"text,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}
