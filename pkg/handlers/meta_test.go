package handlers

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

func TestSetWorkdir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "home", "root", "ipython"), 0755); err != nil {
		t.Fatal(err)
	}

	env := sequencer.NewEnvironment(root)
	h := NewSetWorkdirHandler(LocalFS{})

	if _, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindSetWorkdir, recipe.SetWorkdirArgs{Path: "/home/root/ipython"})); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if env.WorkDir != "/home/root/ipython" {
		t.Errorf("WorkDir = %q, want /home/root/ipython", env.WorkDir)
	}
}

func TestSetWorkdirMissingDirectory(t *testing.T) {
	env := sequencer.NewEnvironment(t.TempDir())
	h := NewSetWorkdirHandler(LocalFS{})

	_, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindSetWorkdir, recipe.SetWorkdirArgs{Path: "/home/root/ipython"}))
	if !sequencer.IsFilesystem(err) {
		t.Errorf("error class = %s, want filesystem", sequencer.ClassOf(err))
	}
	if env.WorkDir != "/" {
		t.Errorf("WorkDir mutated to %q on failure", env.WorkDir)
	}
}

func TestSetWorkdirNotADirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	env := sequencer.NewEnvironment(root)
	h := NewSetWorkdirHandler(LocalFS{})

	_, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindSetWorkdir, recipe.SetWorkdirArgs{Path: "/file"}))
	if !sequencer.IsFilesystem(err) {
		t.Errorf("error class = %s, want filesystem", sequencer.ClassOf(err))
	}
}

func TestSetEnvVisibleToLaterSteps(t *testing.T) {
	env := sequencer.NewEnvironment("")
	h := NewSetEnvHandler()

	if _, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindSetEnv, recipe.SetEnvArgs{Key: "HOME", Value: "/root"})); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if v, ok := env.Getenv("HOME"); !ok || v != "/root" {
		t.Errorf("HOME = %q, want /root", v)
	}
}

func TestImageMetadataHandlers(t *testing.T) {
	env := sequencer.NewEnvironment("")
	ctx := context.Background()

	if _, err := NewDeclarePortHandler().Apply(ctx, env,
		stepOf(t, recipe.KindDeclarePort, recipe.DeclarePortArgs{Port: 8888})); err != nil {
		t.Fatalf("DeclarePort: %v", err)
	}
	if _, err := NewDeclareVolumeHandler().Apply(ctx, env,
		stepOf(t, recipe.KindDeclareVolume, recipe.DeclareVolumeArgs{Path: "/root/ipython"})); err != nil {
		t.Fatalf("DeclareVolume: %v", err)
	}
	if _, err := NewDeclareVolumeHandler().Apply(ctx, env,
		stepOf(t, recipe.KindDeclareVolume, recipe.DeclareVolumeArgs{Path: "/root/flotilla_projects"})); err != nil {
		t.Fatalf("DeclareVolume: %v", err)
	}
	if _, err := NewSetEntrypointHandler().Apply(ctx, env,
		stepOf(t, recipe.KindSetEntrypoint, recipe.SetEntrypointArgs{Command: []string{"/usr/bin/run_notebook.sh"}})); err != nil {
		t.Fatalf("SetEntrypoint: %v", err)
	}

	if ports := env.Image.Ports(); !reflect.DeepEqual(ports, []int{8888}) {
		t.Errorf("Ports = %v, want [8888]", ports)
	}
	wantVolumes := []string{"/root/flotilla_projects", "/root/ipython"}
	if volumes := env.Image.VolumePaths(); !reflect.DeepEqual(volumes, wantVolumes) {
		t.Errorf("Volumes = %v, want %v", volumes, wantVolumes)
	}
	if !reflect.DeepEqual(env.Image.Entrypoint, []string{"/usr/bin/run_notebook.sh"}) {
		t.Errorf("Entrypoint = %v, want [/usr/bin/run_notebook.sh]", env.Image.Entrypoint)
	}
}

func TestArchiveInstallR(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "tmp", "DESeq.tar.gz")
	if err := os.MkdirAll(filepath.Dir(archive), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, []byte("tarball"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &mockRunner{}
	env := sequencer.NewEnvironment(root)
	h := NewArchiveInstallHandler(runner, LocalFS{})

	outcome, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindInstallArchive, recipe.InstallArchiveArgs{Path: "/tmp/DESeq.tar.gz", Installer: "r"}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !outcome.Changed {
		t.Error("Changed = false, want true")
	}

	call := runner.calls[0]
	if call.name != "R" || call.args[0] != "CMD" || call.args[1] != "INSTALL" {
		t.Errorf("command = %s %v, want R CMD INSTALL", call.name, call.args)
	}
}

func TestArchiveInstallMissingArchive(t *testing.T) {
	env := sequencer.NewEnvironment(t.TempDir())
	h := NewArchiveInstallHandler(&mockRunner{}, LocalFS{})

	_, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindInstallArchive, recipe.InstallArchiveArgs{Path: "/tmp/DESeq.tar.gz", Installer: "r"}))
	if !sequencer.IsFilesystem(err) {
		t.Errorf("error class = %s, want filesystem", sequencer.ClassOf(err))
	}
}

func TestArchiveInstallCorrupt(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "corrupt.tar.gz")
	if err := os.WriteFile(archive, []byte("not a tarball"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &mockRunner{respond: func(string, []string) (RunResult, error) {
		return RunResult{ExitCode: 1, Stderr: "error reading from connection"}, nil
	}}
	env := sequencer.NewEnvironment(root)
	h := NewArchiveInstallHandler(runner, LocalFS{})

	_, err := h.Apply(context.Background(), env,
		stepOf(t, recipe.KindInstallArchive, recipe.InstallArchiveArgs{Path: "/corrupt.tar.gz", Installer: "r"}))
	if !sequencer.IsDependency(err) {
		t.Errorf("error class = %s, want dependency", sequencer.ClassOf(err))
	}
}
