package handlers

import (
	"context"
	"fmt"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// LangPkgInstallHandler installs packages through a language package
// manager. Only pip is currently supported.
type LangPkgInstallHandler struct {
	runner CommandRunner
}

// NewLangPkgInstallHandler creates a handler backed by the given runner.
func NewLangPkgInstallHandler(runner CommandRunner) *LangPkgInstallHandler {
	return &LangPkgInstallHandler{runner: runner}
}

// Kind returns the recipe kind this handler serves.
func (h *LangPkgInstallHandler) Kind() recipe.Kind {
	return recipe.KindInstallLanguagePackage
}

// Apply runs pip install against the package spec. Editable installs
// resolve the spec relative to the current working directory.
func (h *LangPkgInstallHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.InstallLanguagePackageArgs)

	cmdArgs := []string{"install"}
	if args.Editable {
		cmdArgs = append(cmdArgs, "-e")
	}
	cmdArgs = append(cmdArgs, args.Spec)

	result, err := h.runner.Run(ctx, "pip", cmdArgs, RunOptions{
		WorkDir: env.HostPath(env.WorkDir),
		Env:     env.Environ(),
	})
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to invoke pip", err).
			WithDetail("spec", args.Spec)
	}
	if result.ExitCode != 0 {
		return sequencer.Outcome{}, sequencer.NewDependencyError(
			fmt.Sprintf("pip install exited with status %d", result.ExitCode), nil).
			WithDetail("spec", args.Spec).
			WithDetail("stderr", result.Stderr)
	}

	env.LanguagePackages[args.Spec] = struct{}{}
	detail := fmt.Sprintf("installed %s", args.Spec)
	if args.Editable {
		detail = fmt.Sprintf("installed %s (editable)", args.Spec)
	}
	return sequencer.Outcome{Changed: true, Detail: detail}, nil
}
