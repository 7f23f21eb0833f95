package handlers

import (
	"context"
	"fmt"
	"path"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// ArchiveInstallHandler installs a downloaded package archive, either
// through R CMD INSTALL or by extracting a tarball.
type ArchiveInstallHandler struct {
	runner CommandRunner
	files  FileWriter
}

// NewArchiveInstallHandler creates a handler backed by the given runner
// and filesystem.
func NewArchiveInstallHandler(runner CommandRunner, files FileWriter) *ArchiveInstallHandler {
	return &ArchiveInstallHandler{runner: runner, files: files}
}

// Kind returns the recipe kind this handler serves.
func (h *ArchiveInstallHandler) Kind() recipe.Kind {
	return recipe.KindInstallArchive
}

// Apply installs the archive.
func (h *ArchiveInstallHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.InstallArchiveArgs)

	archive := env.HostPath(args.Path)
	exists, _, err := h.files.Stat(ctx, archive)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to stat archive", err).
			WithDetail("path", args.Path)
	}
	if !exists {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("archive does not exist", nil).
			WithDetail("path", args.Path)
	}

	switch args.Installer {
	case "r":
		return h.installR(ctx, env, args, archive)
	case "tar":
		return h.installTar(ctx, env, args, archive)
	default:
		return sequencer.Outcome{}, sequencer.NewProcessError(
			fmt.Sprintf("unsupported installer: %s", args.Installer), nil)
	}
}

func (h *ArchiveInstallHandler) installR(ctx context.Context, env *sequencer.Environment, args *recipe.InstallArchiveArgs, archive string) (sequencer.Outcome, error) {
	result, err := h.runner.Run(ctx, "R", []string{"CMD", "INSTALL", archive}, RunOptions{
		WorkDir: env.HostPath(env.WorkDir),
		Env:     env.Environ(),
	})
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to invoke R", err).
			WithDetail("path", args.Path)
	}
	if result.ExitCode != 0 {
		return sequencer.Outcome{}, sequencer.NewDependencyError(
			fmt.Sprintf("R CMD INSTALL exited with status %d", result.ExitCode), nil).
			WithDetail("path", args.Path).
			WithDetail("stderr", result.Stderr)
	}

	env.LanguagePackages[path.Base(args.Path)] = struct{}{}
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("installed %s", path.Base(args.Path))}, nil
}

func (h *ArchiveInstallHandler) installTar(ctx context.Context, env *sequencer.Environment, args *recipe.InstallArchiveArgs, archive string) (sequencer.Outcome, error) {
	if args.Dest == "" {
		return sequencer.Outcome{}, sequencer.NewProcessError("tar installer requires a destination", nil).
			WithDetail("path", args.Path)
	}

	dest := env.HostPath(args.Dest)
	if err := h.files.MkdirAll(ctx, dest, 0755); err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to create destination directory", err).
			WithDetail("dest", args.Dest)
	}

	result, err := h.runner.Run(ctx, "tar", []string{"-xzf", archive, "-C", dest}, RunOptions{})
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("failed to invoke tar", err).
			WithDetail("path", args.Path)
	}
	if result.ExitCode != 0 {
		return sequencer.Outcome{}, sequencer.NewDependencyError(
			fmt.Sprintf("tar exited with status %d", result.ExitCode), nil).
			WithDetail("path", args.Path).
			WithDetail("stderr", result.Stderr)
	}

	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("extracted %s to %s", path.Base(args.Path), args.Dest)}, nil
}
