package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// RunScriptHandler runs a script through its interpreter.
type RunScriptHandler struct {
	runner CommandRunner
}

// NewRunScriptHandler creates a handler backed by the given runner.
func NewRunScriptHandler(runner CommandRunner) *RunScriptHandler {
	return &RunScriptHandler{runner: runner}
}

// Kind returns the recipe kind this handler serves.
func (h *RunScriptHandler) Kind() recipe.Kind {
	return recipe.KindRunScript
}

// Apply runs the interpreter with the script path and any extra
// arguments, in the environment's working directory.
func (h *RunScriptHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.RunScriptArgs)

	script := env.HostPath(args.Path)
	cmdArgs := append([]string{script}, args.Args...)

	result, err := h.runner.Run(ctx, args.Interpreter, cmdArgs, RunOptions{
		WorkDir: env.HostPath(env.WorkDir),
		Env:     env.Environ(),
	})
	if err != nil {
		if errors.Is(err, ErrCommandNotFound) {
			return sequencer.Outcome{}, sequencer.NewProcessError("interpreter not found", err).
				WithDetail("interpreter", args.Interpreter)
		}
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to run script", err).
			WithDetail("path", args.Path)
	}
	if result.ExitCode != 0 {
		return sequencer.Outcome{}, sequencer.NewProcessError(
			fmt.Sprintf("script exited with status %d", result.ExitCode), nil).
			WithDetail("path", args.Path).
			WithDetail("stderr", result.Stderr)
	}

	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("ran %s %s", args.Interpreter, args.Path)}, nil
}
