package handlers

import (
	"context"
	"fmt"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// useradd exit status when the account already exists.
const useraddExitExists = 9

// UserCreateHandler provisions system user accounts via useradd.
type UserCreateHandler struct {
	runner CommandRunner
}

// NewUserCreateHandler creates a handler backed by the given runner.
func NewUserCreateHandler(runner CommandRunner) *UserCreateHandler {
	return &UserCreateHandler{runner: runner}
}

// Kind returns the recipe kind this handler serves.
func (h *UserCreateHandler) Kind() recipe.Kind {
	return recipe.KindCreateUser
}

// Apply creates the user account. A pre-existing account is tolerated
// when the step asks for it, and is reported as an unchanged outcome.
func (h *UserCreateHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.CreateUserArgs)

	if _, ok := env.Users[args.Username]; ok {
		return sequencer.Outcome{Changed: false, Detail: "user already tracked"}, nil
	}

	cmdArgs := []string{}
	if args.CreateHome {
		cmdArgs = append(cmdArgs, "-m")
	}
	if args.Home != "" {
		cmdArgs = append(cmdArgs, "-d", args.Home)
	}
	cmdArgs = append(cmdArgs, args.Username)

	result, err := h.runner.Run(ctx, "useradd", cmdArgs, RunOptions{})
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to invoke useradd", err)
	}

	switch {
	case result.ExitCode == 0:
		env.Users[args.Username] = struct{}{}
		return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("created user %s", args.Username)}, nil
	case result.ExitCode == useraddExitExists && args.TolerateExisting:
		env.Users[args.Username] = struct{}{}
		return sequencer.Outcome{Changed: false, Detail: fmt.Sprintf("user %s already exists", args.Username)}, nil
	default:
		return sequencer.Outcome{}, sequencer.NewPermissionError(
			fmt.Sprintf("useradd exited with status %d", result.ExitCode), nil).
			WithDetail("username", args.Username).
			WithDetail("stderr", result.Stderr)
	}
}
