// Package sequencer provides the core types and the fail-fast execution
// loop for applying an ordered provisioning recipe to a target environment.
package sequencer

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a step failure by its underlying cause.
type ErrorClass string

const (
	// ErrorClassNetwork indicates a download or package-mirror failure.
	// Examples: unreachable URL, non-2xx response, mirror timeout.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDependency indicates a package resolution failure.
	// Examples: unknown package, version conflict, missing native library.
	ErrorClassDependency ErrorClass = "dependency"

	// ErrorClassPermission indicates the environment rejected a mutation.
	// Examples: chmod on a read-only path, user creation without privilege.
	ErrorClassPermission ErrorClass = "permission"

	// ErrorClassProcess indicates a subprocess exited non-zero or could
	// not be started at all.
	ErrorClassProcess ErrorClass = "process"

	// ErrorClassFilesystem indicates a missing or unwritable path.
	ErrorClassFilesystem ErrorClass = "filesystem"
)

// StepError represents a classified step failure with context.
// Every StepError is fatal to the run: the sequencer performs no retries
// and no rollback, matching the ordered-provisioning contract.
type StepError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Kind is the step kind that failed, if known.
	Kind string `json:"kind,omitempty"`

	// StepIndex is the zero-based position of the failing step, or -1
	// when the failure is not attributable to a specific step.
	StepIndex int `json:"step_index"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Kind != "" && e.StepIndex >= 0 {
		return fmt.Sprintf("[%s] %s (step=%d, kind=%s): %s",
			e.Class, e.Message, e.StepIndex, e.Kind, e.unwrapMessage())
	}
	if e.Kind != "" {
		return fmt.Sprintf("[%s] %s (kind=%s): %s",
			e.Class, e.Message, e.Kind, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *StepError) Is(target error) bool {
	t, ok := target.(*StepError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewNetworkError creates a new network-class error.
func NewNetworkError(message string, err error) *StepError {
	return &StepError{Class: ErrorClassNetwork, Message: message, StepIndex: -1, Err: err}
}

// NewDependencyError creates a new dependency-class error.
func NewDependencyError(message string, err error) *StepError {
	return &StepError{Class: ErrorClassDependency, Message: message, StepIndex: -1, Err: err}
}

// NewPermissionError creates a new permission-class error.
func NewPermissionError(message string, err error) *StepError {
	return &StepError{Class: ErrorClassPermission, Message: message, StepIndex: -1, Err: err}
}

// NewProcessError creates a new process-class error.
func NewProcessError(message string, err error) *StepError {
	return &StepError{Class: ErrorClassProcess, Message: message, StepIndex: -1, Err: err}
}

// NewFilesystemError creates a new filesystem-class error.
func NewFilesystemError(message string, err error) *StepError {
	return &StepError{Class: ErrorClassFilesystem, Message: message, StepIndex: -1, Err: err}
}

// WithStep adds step position context to an error.
func (e *StepError) WithStep(index int, kind string) *StepError {
	e.StepIndex = index
	e.Kind = kind
	return e
}

// WithDetail adds a detail field to the error context.
func (e *StepError) WithDetail(key string, value interface{}) *StepError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the classification of err, or an empty class when err
// carries no *StepError in its chain.
func ClassOf(err error) ErrorClass {
	var e *StepError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsNetwork returns true if the error is classified as a network failure.
func IsNetwork(err error) bool { return ClassOf(err) == ErrorClassNetwork }

// IsDependency returns true if the error is classified as a dependency failure.
func IsDependency(err error) bool { return ClassOf(err) == ErrorClassDependency }

// IsPermission returns true if the error is classified as a permission failure.
func IsPermission(err error) bool { return ClassOf(err) == ErrorClassPermission }

// IsProcess returns true if the error is classified as a process failure.
func IsProcess(err error) bool { return ClassOf(err) == ErrorClassProcess }

// IsFilesystem returns true if the error is classified as a filesystem failure.
func IsFilesystem(err error) bool { return ClassOf(err) == ErrorClassFilesystem }

// Classify wraps err in a *StepError when it is not one already.
// Unclassifiable errors default to the process class.
func Classify(err error) *StepError {
	if err == nil {
		return nil
	}
	var e *StepError
	if errors.As(err, &e) {
		return e
	}
	return NewProcessError("step execution failed", err)
}
