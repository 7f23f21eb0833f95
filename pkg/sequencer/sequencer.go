package sequencer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/telemetry"
)

// Sequencer applies an ordered recipe to an environment, strictly
// sequentially and fail-fast: step N begins only after step N-1 has
// fully completed, and the first failure stops the run with no retries
// and no rollback.
type Sequencer struct {
	registry *Registry
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	recorder Recorder
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithTracer enables span emission per run and per step.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Sequencer) { s.tracer = t }
}

// WithRecorder persists execution results once a run reaches a terminal
// state. Persistence failures are logged, never fatal to the run.
func WithRecorder(r Recorder) Option {
	return func(s *Sequencer) { s.recorder = r }
}

// New creates a sequencer dispatching to the given handler registry.
func New(registry *Registry, opts ...Option) *Sequencer {
	s := &Sequencer{
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes every step of the recipe in declaration order against
// env. It returns the immutable ExecutionResult and, when the run did
// not succeed, the classified cause as the error.
func (s *Sequencer) Run(ctx context.Context, rec *recipe.Recipe, env *Environment) (*ExecutionResult, error) {
	result := &ExecutionResult{
		RunID:           uuid.New().String(),
		Recipe:          rec.Name,
		Status:          RunStatusRunning,
		StartedAt:       time.Now(),
		Steps:           make([]StepResult, len(rec.Steps)),
		FailedStepIndex: -1,
	}
	for i, step := range rec.Steps {
		result.Steps[i] = StepResult{
			Index:  i,
			Name:   step.Name,
			Kind:   step.Kind,
			Status: StepStatusNotRun,
		}
	}

	logger := s.logger.With().
		Str("run_id", result.RunID).
		Str("recipe", rec.Name).
		Logger()

	logger.Info().Int("steps", len(rec.Steps)).Msg("Run started")
	if s.metrics != nil {
		s.metrics.RecordRunStarted(rec.Name)
	}

	runCtx := ctx
	if s.tracer != nil {
		var span trace.Span
		runCtx, span = s.tracer.StartRunSpan(ctx, result.RunID, rec.Name)
		defer span.End()
		defer func() {
			span.SetAttributes(telemetry.AttrRunStatus.String(string(result.Status)))
		}()
	}

	var runErr error
	for i := range rec.Steps {
		// Cancellation is only observed between steps; a handler's
		// blocking call runs to completion once started.
		select {
		case <-runCtx.Done():
			result.Status = RunStatusCancelled
			runErr = runCtx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		stepErr := s.executeStep(runCtx, logger, env, rec.Steps[i], &result.Steps[i])
		if stepErr != nil {
			result.Status = RunStatusFailed
			result.FailedStepIndex = i
			result.Cause = stepErr
			runErr = stepErr
			break
		}
	}

	if runErr == nil {
		result.Status = RunStatusSucceeded
	}
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if s.metrics != nil {
		s.metrics.RecordRunCompleted(string(result.Status), result.Duration)
	}

	switch result.Status {
	case RunStatusSucceeded:
		logger.Info().
			Dur("duration", result.Duration).
			Msg("Run completed successfully")
	case RunStatusFailed:
		logger.Error().
			Int("failed_step", result.FailedStepIndex).
			Err(result.Cause).
			Msg("Run failed")
	case RunStatusCancelled:
		logger.Warn().Msg("Run cancelled")
	}

	if s.recorder != nil {
		// Recording uses a fresh context so a cancelled run still lands
		// in the history store.
		if err := s.recorder.Record(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run")
		}
	}

	return result, runErr
}

// executeStep dispatches one step to its handler and records the outcome
// into res. The returned error is the classified failure, nil on success.
func (s *Sequencer) executeStep(
	ctx context.Context,
	logger zerolog.Logger,
	env *Environment,
	step recipe.Step,
	res *StepResult,
) *StepError {
	stepLogger := logger.With().
		Int("step", res.Index).
		Str("kind", string(step.Kind)).
		Logger()

	handler, err := s.registry.Get(step.Kind)
	if err != nil {
		serr := NewProcessError("no handler for step kind", err).
			WithStep(res.Index, string(step.Kind))
		res.Status = StepStatusFailed
		res.Error = serr
		return serr
	}

	stepCtx := ctx
	var span trace.Span
	if s.tracer != nil {
		stepCtx, span = s.tracer.StartStepSpan(ctx, res.Index, string(step.Kind))
		defer span.End()
	}

	stepLogger.Info().Msg("Step started")
	res.StartedAt = time.Now()

	outcome, err := handler.Apply(stepCtx, env, step)

	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)

	if err != nil {
		serr := Classify(err).WithStep(res.Index, string(step.Kind))
		res.Status = StepStatusFailed
		res.Error = serr

		if s.metrics != nil {
			s.metrics.RecordStepExecuted(string(step.Kind), string(StepStatusFailed), res.Duration)
			s.metrics.RecordError(string(serr.Class))
		}
		if span != nil {
			telemetry.RecordError(span, serr)
		}

		stepLogger.Error().
			Err(serr).
			Dur("duration", res.Duration).
			Msg("Step failed")
		return serr
	}

	res.Status = StepStatusSucceeded
	res.Changed = outcome.Changed
	if span != nil {
		telemetry.RecordSuccess(span)
	}

	if s.metrics != nil {
		s.metrics.RecordStepExecuted(string(step.Kind), string(StepStatusSucceeded), res.Duration)
	}

	evt := stepLogger.Info().
		Bool("changed", outcome.Changed).
		Dur("duration", res.Duration)
	if outcome.Detail != "" {
		evt = evt.Str("detail", outcome.Detail)
	}
	evt.Msg("Step completed")

	return nil
}
