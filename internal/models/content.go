package models

// ContentRequest asks the external service to generate lesson or quiz material.
type ContentRequest struct {
	Description string            `json:"description" validate:"required"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// GradeRequest asks the external service to grade a free-text answer.
type GradeRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Rubric   string `json:"rubric,omitempty"`
}

// ContentResult is the black-box service reply. Success=false is an expected outcome.
type ContentResult struct {
	Success   bool        `json:"success"`
	Content   interface{} `json:"content,omitempty"`
	Error     string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable"`
	Attempts  int         `json:"attempts"`
}
