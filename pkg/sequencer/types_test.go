package sequencer

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestEnvironmentResolve(t *testing.T) {
	env := NewEnvironment("")
	env.WorkDir = "/home/root/ipython"

	tests := []struct {
		in   string
		want string
	}{
		{"/usr/bin/run_notebook.sh", "/usr/bin/run_notebook.sh"},
		{"notebook.ipynb", "/home/root/ipython/notebook.ipynb"},
		{"./data", "/home/root/ipython/data"},
		{"../shared", "/home/root/shared"},
		{"/tmp//archive.tar.gz", "/tmp/archive.tar.gz"},
	}

	for _, tt := range tests {
		if got := env.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvironmentHostPath(t *testing.T) {
	env := NewEnvironment("/tmp/stage")

	got := env.HostPath("/usr/bin/run_notebook.sh")
	want := filepath.Join("/tmp/stage", "usr", "bin", "run_notebook.sh")
	if got != want {
		t.Errorf("HostPath = %q, want %q", got, want)
	}

	bare := NewEnvironment("")
	if got := bare.HostPath("/etc/passwd"); got != "/etc/passwd" {
		t.Errorf("HostPath with empty root = %q, want /etc/passwd", got)
	}
}

func TestEnvironmentEnviron(t *testing.T) {
	env := NewEnvironment("")
	env.Setenv("PATH", "/usr/bin")
	env.Setenv("HOME", "/root")

	got := env.Environ()
	want := []string{"HOME=/root", "PATH=/usr/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Environ = %v, want %v", got, want)
	}

	env.Setenv("HOME", "/home/flotilla")
	if v, _ := env.Getenv("HOME"); v != "/home/flotilla" {
		t.Errorf("Getenv after overwrite = %q, want /home/flotilla", v)
	}
}

func TestRunStatusTerminal(t *testing.T) {
	tests := []struct {
		status   RunStatus
		terminal bool
	}{
		{RunStatusPending, false},
		{RunStatusRunning, false},
		{RunStatusSucceeded, true},
		{RunStatusFailed, true},
		{RunStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestStatusValidate(t *testing.T) {
	if err := RunStatusSucceeded.Validate(); err != nil {
		t.Errorf("valid run status rejected: %v", err)
	}
	if err := RunStatus("exploded").Validate(); err == nil {
		t.Error("invalid run status accepted")
	}
	if err := StepStatusNotRun.Validate(); err != nil {
		t.Errorf("valid step status rejected: %v", err)
	}
	if err := StepStatus("skipped").Validate(); err == nil {
		t.Error("invalid step status accepted")
	}
}
