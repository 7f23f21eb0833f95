package handlers

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// ChmodHandler updates permission bits on a path.
type ChmodHandler struct {
	files FileWriter
}

// NewChmodHandler creates a handler backed by the given filesystem.
func NewChmodHandler(files FileWriter) *ChmodHandler {
	return &ChmodHandler{files: files}
}

// Kind returns the recipe kind this handler serves.
func (h *ChmodHandler) Kind() recipe.Kind {
	return recipe.KindChmod
}

// Apply sets the mode on the target path. The path must already exist.
func (h *ChmodHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.ChmodArgs)

	mode, err := strconv.ParseUint(args.Mode, 8, 32)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid mode", err).
			WithDetail("mode", args.Mode)
	}

	target := env.HostPath(args.Path)
	exists, _, err := h.files.Stat(ctx, target)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to stat path", err).
			WithDetail("path", args.Path)
	}
	if !exists {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("path does not exist", nil).
			WithDetail("path", args.Path)
	}

	if err := h.files.Chmod(ctx, target, os.FileMode(mode)); err != nil {
		return sequencer.Outcome{}, sequencer.NewPermissionError("chmod failed", err).
			WithDetail("path", args.Path)
	}

	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("mode %s on %s", args.Mode, args.Path)}, nil
}
