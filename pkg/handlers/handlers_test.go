package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// recordedCall is one command observed by the mock runner.
type recordedCall struct {
	name string
	args []string
	opts RunOptions
}

// mockRunner scripts command results by command name.
type mockRunner struct {
	calls   []recordedCall
	respond func(name string, args []string) (RunResult, error)
}

func (m *mockRunner) Run(_ context.Context, name string, args []string, opts RunOptions) (RunResult, error) {
	m.calls = append(m.calls, recordedCall{name: name, args: args, opts: opts})
	if m.respond == nil {
		return RunResult{}, nil
	}
	return m.respond(name, args)
}

func (m *mockRunner) commandLines() []string {
	lines := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		lines = append(lines, strings.TrimSpace(c.name+" "+strings.Join(c.args, " ")))
	}
	return lines
}

func mustArgs(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return raw
}

func stepOf(t *testing.T, kind recipe.Kind, args interface{}) recipe.Step {
	t.Helper()
	return recipe.Step{Kind: kind, Args: mustArgs(t, args)}
}

func TestUserCreate(t *testing.T) {
	tests := []struct {
		name        string
		args        recipe.CreateUserArgs
		exitCode    int
		wantErr     bool
		wantClass   sequencer.ErrorClass
		wantChanged bool
		wantCmd     string
	}{
		{
			name:        "creates user with home",
			args:        recipe.CreateUserArgs{Username: "flotilla", CreateHome: true},
			wantChanged: true,
			wantCmd:     "useradd -m flotilla",
		},
		{
			name:        "existing user tolerated",
			args:        recipe.CreateUserArgs{Username: "flotilla", TolerateExisting: true},
			exitCode:    useraddExitExists,
			wantChanged: false,
		},
		{
			name:      "existing user not tolerated",
			args:      recipe.CreateUserArgs{Username: "flotilla"},
			exitCode:  useraddExitExists,
			wantErr:   true,
			wantClass: sequencer.ErrorClassPermission,
		},
		{
			name:      "useradd denied",
			args:      recipe.CreateUserArgs{Username: "flotilla"},
			exitCode:  1,
			wantErr:   true,
			wantClass: sequencer.ErrorClassPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
				return RunResult{ExitCode: tt.exitCode}, nil
			}}
			env := sequencer.NewEnvironment("")
			h := NewUserCreateHandler(runner)

			outcome, err := h.Apply(context.Background(), env, stepOf(t, recipe.KindCreateUser, tt.args))

			if tt.wantErr {
				if err == nil {
					t.Fatal("Apply returned nil error")
				}
				if got := sequencer.ClassOf(err); got != tt.wantClass {
					t.Errorf("error class = %s, want %s", got, tt.wantClass)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if outcome.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", outcome.Changed, tt.wantChanged)
			}
			if _, ok := env.Users["flotilla"]; !ok {
				t.Error("user not tracked in environment")
			}
			if tt.wantCmd != "" && runner.commandLines()[0] != tt.wantCmd {
				t.Errorf("command = %q, want %q", runner.commandLines()[0], tt.wantCmd)
			}
		})
	}
}

func TestUserCreateSecondApplyIsNoop(t *testing.T) {
	runner := &mockRunner{}
	env := sequencer.NewEnvironment("")
	h := NewUserCreateHandler(runner)
	step := stepOf(t, recipe.KindCreateUser, recipe.CreateUserArgs{Username: "flotilla", TolerateExisting: true})

	if _, err := h.Apply(context.Background(), env, step); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	outcome, err := h.Apply(context.Background(), env, step)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if outcome.Changed {
		t.Error("second Apply reported a change")
	}
	if len(runner.calls) != 1 {
		t.Errorf("useradd invoked %d times, want 1", len(runner.calls))
	}
}

func TestPkgInstall(t *testing.T) {
	t.Run("installs via apt", func(t *testing.T) {
		runner := &mockRunner{respond: func(name string, _ []string) (RunResult, error) {
			if name == "dpkg-query" {
				return RunResult{ExitCode: 1}, nil
			}
			return RunResult{}, nil
		}}
		env := sequencer.NewEnvironment("")
		h := NewPkgInstallHandler(runner)

		outcome, err := h.Apply(context.Background(), env,
			stepOf(t, recipe.KindInstallSystemPackage, recipe.InstallSystemPackageArgs{Name: "r-base", Manager: "apt"}))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if !outcome.Changed {
			t.Error("Changed = false, want true")
		}
		if _, ok := env.SystemPackages["r-base"]; !ok {
			t.Error("package not tracked in environment")
		}

		want := "apt install -y r-base"
		lines := runner.commandLines()
		if lines[len(lines)-1] != want {
			t.Errorf("install command = %q, want %q", lines[len(lines)-1], want)
		}
	})

	t.Run("already installed", func(t *testing.T) {
		runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
			return RunResult{ExitCode: 0}, nil
		}}
		h := NewPkgInstallHandler(runner)

		outcome, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindInstallSystemPackage, recipe.InstallSystemPackageArgs{Name: "r-base", Manager: "apt"}))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if outcome.Changed {
			t.Error("Changed = true for an already-installed package")
		}
	})

	t.Run("resolution failure", func(t *testing.T) {
		runner := &mockRunner{respond: func(name string, _ []string) (RunResult, error) {
			if name == "dpkg-query" {
				return RunResult{ExitCode: 1}, nil
			}
			return RunResult{ExitCode: 100, Stderr: "E: Unable to locate package r-base"}, nil
		}}
		h := NewPkgInstallHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindInstallSystemPackage, recipe.InstallSystemPackageArgs{Name: "r-base", Manager: "apt"}))
		if !sequencer.IsDependency(err) {
			t.Errorf("error class = %s, want dependency", sequencer.ClassOf(err))
		}
	})

	t.Run("no manager found", func(t *testing.T) {
		runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
			return RunResult{ExitCode: 127}, nil
		}}
		h := NewPkgInstallHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindInstallSystemPackage, recipe.InstallSystemPackageArgs{Name: "r-base"}))
		if !sequencer.IsDependency(err) {
			t.Errorf("error class = %s, want dependency", sequencer.ClassOf(err))
		}
	})
}

func TestLangPkgInstall(t *testing.T) {
	t.Run("pip install", func(t *testing.T) {
		runner := &mockRunner{}
		env := sequencer.NewEnvironment("")
		h := NewLangPkgInstallHandler(runner)

		outcome, err := h.Apply(context.Background(), env,
			stepOf(t, recipe.KindInstallLanguagePackage, recipe.InstallLanguagePackageArgs{Spec: "rpy2"}))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if !outcome.Changed {
			t.Error("Changed = false, want true")
		}
		if got := runner.commandLines()[0]; got != "pip install rpy2" {
			t.Errorf("command = %q, want %q", got, "pip install rpy2")
		}
	})

	t.Run("editable install", func(t *testing.T) {
		runner := &mockRunner{}
		h := NewLangPkgInstallHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindInstallLanguagePackage, recipe.InstallLanguagePackageArgs{Spec: ".", Editable: true}))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if got := runner.commandLines()[0]; got != "pip install -e ." {
			t.Errorf("command = %q, want %q", got, "pip install -e .")
		}
	})

	t.Run("resolution failure", func(t *testing.T) {
		runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
			return RunResult{ExitCode: 1, Stderr: "No matching distribution found for rpy2"}, nil
		}}
		h := NewLangPkgInstallHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindInstallLanguagePackage, recipe.InstallLanguagePackageArgs{Spec: "rpy2"}))
		if !sequencer.IsDependency(err) {
			t.Errorf("error class = %s, want dependency", sequencer.ClassOf(err))
		}
	})
}

func TestRunScript(t *testing.T) {
	t.Run("passes workdir and environment", func(t *testing.T) {
		runner := &mockRunner{}
		env := sequencer.NewEnvironment("")
		env.WorkDir = "/home/root/ipython"
		env.Setenv("HOME", "/root")
		h := NewRunScriptHandler(runner)

		_, err := h.Apply(context.Background(), env,
			stepOf(t, recipe.KindRunScript, recipe.RunScriptArgs{Interpreter: "Rscript", Path: "/tmp/install_bioconductor.R"}))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}

		call := runner.calls[0]
		if call.name != "Rscript" {
			t.Errorf("interpreter = %q, want Rscript", call.name)
		}
		if call.opts.WorkDir != "/home/root/ipython" {
			t.Errorf("WorkDir = %q, want /home/root/ipython", call.opts.WorkDir)
		}
		found := false
		for _, kv := range call.opts.Env {
			if kv == "HOME=/root" {
				found = true
			}
		}
		if !found {
			t.Errorf("Env = %v, missing HOME=/root", call.opts.Env)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
			return RunResult{ExitCode: 2, Stderr: "Error in library(BiocManager)"}, nil
		}}
		h := NewRunScriptHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindRunScript, recipe.RunScriptArgs{Interpreter: "Rscript", Path: "/tmp/fail.R"}))
		if !sequencer.IsProcess(err) {
			t.Errorf("error class = %s, want process", sequencer.ClassOf(err))
		}
	})

	t.Run("interpreter missing", func(t *testing.T) {
		runner := &mockRunner{respond: func(name string, _ []string) (RunResult, error) {
			return RunResult{}, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
		}}
		h := NewRunScriptHandler(runner)

		_, err := h.Apply(context.Background(), sequencer.NewEnvironment(""),
			stepOf(t, recipe.KindRunScript, recipe.RunScriptArgs{Interpreter: "Rscript", Path: "/tmp/x.R"}))
		if !sequencer.IsProcess(err) {
			t.Errorf("error class = %s, want process", sequencer.ClassOf(err))
		}
	})
}

func TestDefaultRegistryCoversEveryKind(t *testing.T) {
	registry, err := DefaultRegistry(&mockRunner{}, LocalFS{}, nil)
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}

	for _, kind := range recipe.Kinds {
		if _, err := registry.Get(kind); err != nil {
			t.Errorf("no handler for %s", kind)
		}
	}
}
