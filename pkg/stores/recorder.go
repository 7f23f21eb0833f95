package stores

import (
	"context"
	"time"

	"github.com/imageforge/imageforge/pkg/sequencer"
)

// RunRecorder adapts the store to the sequencer's Recorder interface.
type RunRecorder struct {
	store *SQLiteStore
}

// NewRunRecorder creates a recorder backed by the given store.
func NewRunRecorder(store *SQLiteStore) *RunRecorder {
	return &RunRecorder{store: store}
}

// Record persists the terminal result of a run.
func (r *RunRecorder) Record(ctx context.Context, result *sequencer.ExecutionResult) error {
	run := &Run{
		ID:              result.RunID,
		Recipe:          result.Recipe,
		Status:          string(result.Status),
		StartedAt:       result.StartedAt,
		DurationMS:      result.Duration.Milliseconds(),
		FailedStepIndex: result.FailedStepIndex,
		CreatedAt:       time.Now(),
	}
	if !result.CompletedAt.IsZero() {
		completed := result.CompletedAt
		run.CompletedAt = &completed
	}
	if result.Cause != nil {
		msg := result.Cause.Error()
		run.Error = &msg
	}

	steps := make([]StepRecord, 0, len(result.Steps))
	for _, s := range result.Steps {
		record := StepRecord{
			RunID:      result.RunID,
			StepIndex:  s.Index,
			Name:       s.Name,
			Kind:       string(s.Kind),
			Status:     string(s.Status),
			Changed:    s.Changed,
			DurationMS: s.Duration.Milliseconds(),
		}
		if !s.StartedAt.IsZero() {
			started := s.StartedAt
			record.StartedAt = &started
		}
		if !s.CompletedAt.IsZero() {
			completed := s.CompletedAt
			record.CompletedAt = &completed
		}
		if s.Error != nil {
			class := string(s.Error.Class)
			msg := s.Error.Error()
			record.ErrorClass = &class
			record.Error = &msg
		}
		steps = append(steps, record)
	}

	return r.store.SaveRun(ctx, run, steps)
}
