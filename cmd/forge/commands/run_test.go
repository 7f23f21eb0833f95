package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything fn printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	rp, wp, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = wp
	defer func() { os.Stdout = old }()

	fn()

	_ = wp.Close()
	data, err := io.ReadAll(rp)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRunCommandPrintsSummaryOnFailure(t *testing.T) {
	dir := t.TempDir()
	recipePath := filepath.Join(dir, "broken.cue")
	src := `
name: "broken"
steps: [
	{
		name: "enter missing dir"
		kind: "workdir.set"
		args: path: "/does/not/exist"
	},
	{
		kind: "env.set"
		args: {key: "HOME", value: "/root"}
	},
]
`
	if err := os.WriteFile(recipePath, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--root", dir, "--no-store", recipePath})

	var runErr error
	out := captureStdout(t, func() {
		runErr = cmd.ExecuteContext(context.Background())
	})

	if runErr == nil {
		t.Fatal("expected the failed run to surface an error")
	}
	if !strings.Contains(runErr.Error(), "at step 0") {
		t.Errorf("error = %q, want failing step index", runErr)
	}

	// The summary prints even when the run fails.
	if !strings.Contains(out, "enter missing dir") {
		t.Errorf("summary missing failed step name:\n%s", out)
	}
	if !strings.Contains(out, "(filesystem)") {
		t.Errorf("summary missing error class:\n%s", out)
	}
	if !strings.Contains(out, "not_run") {
		t.Errorf("summary missing skipped step:\n%s", out)
	}
}
