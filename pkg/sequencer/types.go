package sequencer

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/imageforge/imageforge/pkg/image"
	"github.com/imageforge/imageforge/pkg/recipe"
)

// Environment is the mutable target a run provisions: a filesystem
// rooted at Root, the installed-package and user sets, the env-var map,
// and the current working directory. It is exclusively owned by the
// sequencer for the duration of a run; nothing else mutates it.
type Environment struct {
	// Root is the host directory backing the environment's filesystem.
	// Empty means the host's own root, i.e. provisioning in place.
	Root string

	// WorkDir is the in-environment working directory that relative
	// paths resolve against. Defaults to "/".
	WorkDir string

	// Env holds the environment variables visible to subsequent steps
	// and recorded on the final image.
	Env map[string]string

	// Users are the accounts created (or confirmed present) so far.
	Users map[string]struct{}

	// SystemPackages are the system packages installed so far.
	SystemPackages map[string]struct{}

	// LanguagePackages are the language packages installed so far.
	LanguagePackages map[string]struct{}

	// Image accumulates the declared runtime surface.
	Image *image.Meta
}

// NewEnvironment creates an environment backed by the given host root.
func NewEnvironment(root string) *Environment {
	return &Environment{
		Root:             root,
		WorkDir:          "/",
		Env:              make(map[string]string),
		Users:            make(map[string]struct{}),
		SystemPackages:   make(map[string]struct{}),
		LanguagePackages: make(map[string]struct{}),
		Image:            image.NewMeta(),
	}
}

// Resolve turns an in-environment path into an absolute in-environment
// path, resolving relative paths against the current working directory.
func (e *Environment) Resolve(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(e.WorkDir, p)
	}
	return path.Clean(p)
}

// HostPath maps an in-environment path onto the backing host filesystem.
func (e *Environment) HostPath(p string) string {
	p = e.Resolve(p)
	if e.Root == "" {
		return p
	}
	return filepath.Join(e.Root, strings.TrimPrefix(p, "/"))
}

// Setenv records an environment variable.
func (e *Environment) Setenv(key, value string) {
	e.Env[key] = value
}

// Getenv looks up an environment variable.
func (e *Environment) Getenv(key string) (string, bool) {
	v, ok := e.Env[key]
	return v, ok
}

// Environ returns the environment variables as sorted KEY=value pairs.
func (e *Environment) Environ() []string {
	pairs := make([]string, 0, len(e.Env))
	for k, v := range e.Env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// StepResult is the recorded outcome of one step.
type StepResult struct {
	// Index is the step's zero-based position in the recipe.
	Index int `json:"index"`

	// Name is the step's label, if the recipe gave it one.
	Name string `json:"name,omitempty"`

	// Kind is the step's action kind.
	Kind recipe.Kind `json:"kind"`

	// Status is the terminal status of the step.
	Status StepStatus `json:"status"`

	// Changed reports whether the step mutated the environment, as
	// opposed to confirming an already-satisfied condition.
	Changed bool `json:"changed"`

	// StartedAt is when the handler was invoked.
	StartedAt time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the handler returned.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Duration is the handler's execution time.
	Duration time.Duration `json:"duration"`

	// Error is the classified failure, if the step failed.
	Error *StepError `json:"error,omitempty"`
}

// ExecutionResult is the terminal outcome of running a full recipe.
// It is created once per run and never modified afterwards.
type ExecutionResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Recipe is the name of the recipe that was executed.
	Recipe string `json:"recipe"`

	// Status is the terminal run status.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached its terminal state.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`

	// Steps holds one result per declared step, in declaration order.
	// Steps after a failure carry StepStatusNotRun.
	Steps []StepResult `json:"steps"`

	// FailedStepIndex is the position of the failing step, or -1 when
	// every step succeeded.
	FailedStepIndex int `json:"failed_step_index"`

	// Cause is the classified failure that stopped the run, if any.
	Cause *StepError `json:"cause,omitempty"`
}

// Succeeded reports whether every step completed successfully.
func (r *ExecutionResult) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// Recorder persists terminal execution results. Implementations must
// tolerate being called exactly once per run.
type Recorder interface {
	// Record persists the result of a completed run.
	Record(ctx context.Context, result *ExecutionResult) error
}
