package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/imageforge/imageforge/pkg/handlers"
)

// Runner executes commands and file mutations on one remote host. It
// opens an SSH session per command and keeps a single SFTP client for
// file operations.
type Runner struct {
	config *Config
	client *ssh.Client
	sftp   *sftp.Client
}

// Connect dials the remote host and opens the SFTP subsystem.
func Connect(cfg *Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}

	clientConfig, err := cfg.BuildSSHClientConfig()
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", cfg.Address(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Address(), err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open sftp subsystem: %w", err)
	}

	return &Runner{config: cfg, client: client, sftp: sftpClient}, nil
}

// Close shuts down the SFTP subsystem and the SSH connection.
func (r *Runner) Close() error {
	var errs []error
	if r.sftp != nil {
		if err := r.sftp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes the command in a fresh SSH session. Environment and
// working directory are applied through the remote shell, since most
// sshd configurations reject session Setenv for arbitrary variables.
func (r *Runner) Run(ctx context.Context, name string, args []string, opts handlers.RunOptions) (handlers.RunResult, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return handlers.RunResult{}, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(r.buildCommand(name, args, opts))
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return handlers.RunResult{}, ctx.Err()
	case err = <-done:
	}

	result := handlers.RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			// The shell reports a missing command as 127.
			if result.ExitCode == 127 {
				return result, fmt.Errorf("%w: %s", handlers.ErrCommandNotFound, name)
			}
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return result, nil
}

// buildCommand renders the command line executed by the remote shell.
func (r *Runner) buildCommand(name string, args []string, opts handlers.RunOptions) string {
	var b strings.Builder
	if opts.WorkDir != "" {
		b.WriteString("cd ")
		b.WriteString(shellQuote(opts.WorkDir))
		b.WriteString(" && ")
	}
	for _, kv := range opts.Env {
		if key, value, ok := strings.Cut(kv, "="); ok {
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(shellQuote(value))
			b.WriteString(" ")
		}
	}
	b.WriteString(shellQuote(name))
	for _, arg := range args {
		b.WriteString(" ")
		b.WriteString(shellQuote(arg))
	}
	return b.String()
}

// shellQuote single-quotes a string for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// WriteFile writes the contents of rd to path over SFTP.
func (r *Runner) WriteFile(_ context.Context, path string, rd io.Reader, mode os.FileMode) error {
	f, err := r.sftp.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, rd); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return r.sftp.Chmod(path, mode)
}

// Chmod updates the permission bits of path over SFTP.
func (r *Runner) Chmod(_ context.Context, path string, mode os.FileMode) error {
	return r.sftp.Chmod(path, mode)
}

// Stat reports whether path exists and whether it is a directory.
func (r *Runner) Stat(_ context.Context, path string) (exists bool, isDir bool, err error) {
	info, err := r.sftp.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// MkdirAll creates a directory and any missing parents over SFTP.
func (r *Runner) MkdirAll(_ context.Context, path string, _ os.FileMode) error {
	return r.sftp.MkdirAll(path)
}
