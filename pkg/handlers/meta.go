package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// SetWorkdirHandler changes the working directory for subsequent steps.
type SetWorkdirHandler struct {
	files FileWriter
}

// NewSetWorkdirHandler creates a handler backed by the given filesystem.
func NewSetWorkdirHandler(files FileWriter) *SetWorkdirHandler {
	return &SetWorkdirHandler{files: files}
}

// Kind returns the recipe kind this handler serves.
func (h *SetWorkdirHandler) Kind() recipe.Kind {
	return recipe.KindSetWorkdir
}

// Apply switches the environment's working directory. The target must
// already exist and be a directory; the step never creates it.
func (h *SetWorkdirHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.SetWorkdirArgs)

	resolved := env.Resolve(args.Path)
	exists, isDir, err := h.files.Stat(ctx, env.HostPath(resolved))
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to stat directory", err).
			WithDetail("path", args.Path)
	}
	if !exists {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("directory does not exist", nil).
			WithDetail("path", args.Path)
	}
	if !isDir {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("path is not a directory", nil).
			WithDetail("path", args.Path)
	}

	env.WorkDir = resolved
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("workdir %s", resolved)}, nil
}

// SetEnvHandler sets an environment variable for subsequent steps and
// records it on the image.
type SetEnvHandler struct{}

// NewSetEnvHandler creates a handler.
func NewSetEnvHandler() *SetEnvHandler {
	return &SetEnvHandler{}
}

// Kind returns the recipe kind this handler serves.
func (h *SetEnvHandler) Kind() recipe.Kind {
	return recipe.KindSetEnv
}

// Apply sets the variable, overwriting any previous value.
func (h *SetEnvHandler) Apply(_ context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.SetEnvArgs)

	env.Setenv(args.Key, args.Value)
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("%s=%s", args.Key, args.Value)}, nil
}

// DeclarePortHandler records an exposed port on the image metadata.
type DeclarePortHandler struct{}

// NewDeclarePortHandler creates a handler.
func NewDeclarePortHandler() *DeclarePortHandler {
	return &DeclarePortHandler{}
}

// Kind returns the recipe kind this handler serves.
func (h *DeclarePortHandler) Kind() recipe.Kind {
	return recipe.KindDeclarePort
}

// Apply records the port. Re-declaring a port is harmless.
func (h *DeclarePortHandler) Apply(_ context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.DeclarePortArgs)

	env.Image.ExposePort(args.Port)
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("port %d", args.Port)}, nil
}

// DeclareVolumeHandler records a mount point on the image metadata.
type DeclareVolumeHandler struct{}

// NewDeclareVolumeHandler creates a handler.
func NewDeclareVolumeHandler() *DeclareVolumeHandler {
	return &DeclareVolumeHandler{}
}

// Kind returns the recipe kind this handler serves.
func (h *DeclareVolumeHandler) Kind() recipe.Kind {
	return recipe.KindDeclareVolume
}

// Apply records the mount point.
func (h *DeclareVolumeHandler) Apply(_ context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.DeclareVolumeArgs)

	env.Image.DeclareVolume(args.Path)
	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("volume %s", args.Path)}, nil
}

// SetEntrypointHandler records the image's default start command.
type SetEntrypointHandler struct{}

// NewSetEntrypointHandler creates a handler.
func NewSetEntrypointHandler() *SetEntrypointHandler {
	return &SetEntrypointHandler{}
}

// Kind returns the recipe kind this handler serves.
func (h *SetEntrypointHandler) Kind() recipe.Kind {
	return recipe.KindSetEntrypoint
}

// Apply records the entrypoint, replacing any previous one.
func (h *SetEntrypointHandler) Apply(_ context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.SetEntrypointArgs)

	env.Image.SetEntrypoint(args.Command)
	return sequencer.Outcome{Changed: true, Detail: strings.Join(args.Command, " ")}, nil
}
