package models

// LedgerState is the persisted blob of one account.
type LedgerState struct {
	Students      []Student    `json:"students"`
	CourseInfo    CourseInfo   `json:"courseInfo"`
	CourseHistory []CourseInfo `json:"courseHistory"`
}
