package stores

import "time"

// Run is a persisted execution run.
type Run struct {
	ID              string     `json:"id"`
	Recipe          string     `json:"recipe"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMS      int64      `json:"duration_ms"`
	FailedStepIndex int        `json:"failed_step_index"`
	Error           *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// StepRecord is one persisted step outcome within a run.
type StepRecord struct {
	RunID       string     `json:"run_id"`
	StepIndex   int        `json:"step_index"`
	Name        string     `json:"name,omitempty"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Changed     bool       `json:"changed"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	ErrorClass  *string    `json:"error_class,omitempty"`
	Error       *string    `json:"error,omitempty"`
}
