package handlers

import (
	"context"
	"fmt"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// packageManager describes one supported system package manager.
type packageManager struct {
	name        string
	installArgs []string
	queryCmd    string
	queryArgs   []string
}

// managers lists supported package managers in detection order.
var managers = []packageManager{
	{name: "apt", installArgs: []string{"install", "-y"}, queryCmd: "dpkg-query", queryArgs: []string{"-W", "-f=${Status}"}},
	{name: "dnf", installArgs: []string{"install", "-y"}, queryCmd: "rpm", queryArgs: []string{"-q"}},
	{name: "yum", installArgs: []string{"install", "-y"}, queryCmd: "rpm", queryArgs: []string{"-q"}},
	{name: "zypper", installArgs: []string{"install", "-y"}, queryCmd: "rpm", queryArgs: []string{"-q"}},
}

// PkgInstallHandler installs packages through the system package manager.
type PkgInstallHandler struct {
	runner CommandRunner
}

// NewPkgInstallHandler creates a handler backed by the given runner.
func NewPkgInstallHandler(runner CommandRunner) *PkgInstallHandler {
	return &PkgInstallHandler{runner: runner}
}

// Kind returns the recipe kind this handler serves.
func (h *PkgInstallHandler) Kind() recipe.Kind {
	return recipe.KindInstallSystemPackage
}

// Apply installs the package. An already-installed package is reported
// as an unchanged outcome.
func (h *PkgInstallHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.InstallSystemPackageArgs)

	mgr, err := h.selectManager(ctx, args.Manager)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewDependencyError("no usable package manager", err).
			WithDetail("package", args.Name)
	}

	installed, err := h.isInstalled(ctx, mgr, args.Name)
	if err == nil && installed {
		env.SystemPackages[args.Name] = struct{}{}
		return sequencer.Outcome{Changed: false, Detail: fmt.Sprintf("%s already installed", args.Name)}, nil
	}

	result, err := h.runner.Run(ctx, mgr.name, append(append([]string{}, mgr.installArgs...), args.Name), RunOptions{})
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to invoke package manager", err).
			WithDetail("manager", mgr.name)
	}
	if result.ExitCode != 0 {
		return sequencer.Outcome{}, sequencer.NewDependencyError(
			fmt.Sprintf("%s install exited with status %d", mgr.name, result.ExitCode), nil).
			WithDetail("package", args.Name).
			WithDetail("stderr", result.Stderr)
	}

	env.SystemPackages[args.Name] = struct{}{}
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("installed %s via %s", args.Name, mgr.name)}, nil
}

// selectManager returns the requested manager, or the first one present
// in the target environment when the step does not name one.
func (h *PkgInstallHandler) selectManager(ctx context.Context, name string) (packageManager, error) {
	if name != "" {
		for _, mgr := range managers {
			if mgr.name == name {
				return mgr, nil
			}
		}
		return packageManager{}, fmt.Errorf("unsupported package manager: %s", name)
	}

	for _, mgr := range managers {
		result, err := h.runner.Run(ctx, "sh", []string{"-c", "command -v " + mgr.name}, RunOptions{})
		if err == nil && result.ExitCode == 0 {
			return mgr, nil
		}
	}
	return packageManager{}, fmt.Errorf("none of apt, dnf, yum, zypper found")
}

// isInstalled queries the manager's package database.
func (h *PkgInstallHandler) isInstalled(ctx context.Context, mgr packageManager, pkg string) (bool, error) {
	result, err := h.runner.Run(ctx, mgr.queryCmd, append(append([]string{}, mgr.queryArgs...), pkg), RunOptions{})
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}
