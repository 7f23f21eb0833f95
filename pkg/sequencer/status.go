package sequencer

import "fmt"

// RunStatus represents the overall status of a recipe run.
type RunStatus string

const (
	// RunStatusPending indicates the run is created but not yet started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every step completed successfully.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates a step failed and the run stopped there.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the host cancelled the run between steps.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// StepStatus represents the execution status of a single step.
type StepStatus string

const (
	// StepStatusSucceeded indicates the step's side effect was fully applied.
	StepStatusSucceeded StepStatus = "succeeded"

	// StepStatusFailed indicates the step's handler reported an error.
	StepStatusFailed StepStatus = "failed"

	// StepStatusNotRun indicates the step never started because an
	// earlier step failed or the run was cancelled.
	StepStatusNotRun StepStatus = "not_run"
)

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusNotRun:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}
