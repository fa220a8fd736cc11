package models

import "time"

// SectionRecord maps field ids to submitted values for one section instance.
type SectionRecord map[string]interface{}

// FormResponseEntry is a student's submission against a template.
//
// Responses is keyed by section id. Non-repeatable sections hold a single record object,
// repeatable sections hold a list of records. Values are kept as decoded JSON so entries
// written against older template versions stay readable.
type FormResponseEntry struct {
	ID                   string                 `json:"id"`
	TemplateID           string                 `json:"templateId"`
	TemplateVersion      int                    `json:"templateVersion"`
	StudentID            string                 `json:"studentId"`
	Responses            map[string]interface{} `json:"responses"`
	CompletionPercentage float64                `json:"completionPercentage"`
	IsComplete           bool                   `json:"isComplete"`
	SubmittedAt          time.Time              `json:"submittedAt"`
}

// SubmitResponseRequest is the student payload for a form submission.
type SubmitResponseRequest struct {
	Responses map[string]interface{} `json:"responses" validate:"required"`
}

// FormResponseFilter scopes response listings.
type FormResponseFilter struct {
	TemplateID string
	StudentID  string
	From       *time.Time
	To         *time.Time
}

// Completion summarises how much of the required schema an entry answers.
type Completion struct {
	Percentage float64  `json:"percentage"`
	IsComplete bool     `json:"isComplete"`
	Missing    []string `json:"missing,omitempty"`
}
