// Package handlers implements one step handler per recipe kind. Handlers
// mutate the environment through two capability interfaces: CommandRunner
// for subprocess execution and FileWriter for filesystem mutation, so the
// same handlers drive local staging directories and remote SSH targets.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// RunOptions control how a command is executed.
type RunOptions struct {
	// WorkDir is the working directory for the command. Empty means the
	// runner's default.
	WorkDir string

	// Env are KEY=value pairs for the command's environment. Nil means
	// the runner's default environment.
	Env []string
}

// RunResult is the outcome of a completed command.
type RunResult struct {
	// ExitCode is the command's exit status.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string
}

// CommandRunner runs a command inside the target environment and waits
// for it to exit. A non-zero exit is reported through RunResult, not as
// an error; errors mean the command could not be run at all.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error)
}

// FileWriter mutates the target environment's filesystem.
type FileWriter interface {
	// WriteFile writes the contents of r to path, creating the file if
	// needed and truncating it otherwise.
	WriteFile(ctx context.Context, path string, r io.Reader, mode os.FileMode) error

	// Chmod updates the permission bits of path.
	Chmod(ctx context.Context, path string, mode os.FileMode) error

	// Stat reports whether path exists and whether it is a directory.
	Stat(ctx context.Context, path string) (exists bool, isDir bool, err error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(ctx context.Context, path string, mode os.FileMode) error
}

// ErrCommandNotFound reports that the command's binary is not present in
// the target environment.
var ErrCommandNotFound = errors.New("command not found")

// LocalRunner executes commands as subprocesses of the current process.
type LocalRunner struct{}

// Run executes the command and captures its output.
func (LocalRunner) Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return result, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
		}
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return result, nil
}

// LocalFS mutates the local filesystem directly.
type LocalFS struct{}

// WriteFile writes the contents of r to path.
func (LocalFS) WriteFile(_ context.Context, path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Chmod updates the permission bits of path.
func (LocalFS) Chmod(_ context.Context, path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// Stat reports whether path exists and whether it is a directory.
func (LocalFS) Stat(_ context.Context, path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// MkdirAll creates a directory and any missing parents.
func (LocalFS) MkdirAll(_ context.Context, path string, mode os.FileMode) error {
	return os.MkdirAll(path, mode)
}

// ensureParentDir creates the parent directory of path if it is missing.
func ensureParentDir(ctx context.Context, files FileWriter, path string) error {
	return files.MkdirAll(ctx, filepath.Dir(path), 0755)
}
