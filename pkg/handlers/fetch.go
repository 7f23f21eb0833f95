package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
)

// FetchHandler downloads files over HTTP into the environment.
type FetchHandler struct {
	client *http.Client
	files  FileWriter
}

// NewFetchHandler creates a handler. A nil client falls back to a
// default with a 5 minute timeout.
func NewFetchHandler(client *http.Client, files FileWriter) *FetchHandler {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &FetchHandler{client: client, files: files}
}

// Kind returns the recipe kind this handler serves.
func (h *FetchHandler) Kind() recipe.Kind {
	return recipe.KindFetch
}

// Apply downloads the URL and writes it to the destination path. The
// download always runs in full; a pre-existing destination is truncated.
func (h *FetchHandler) Apply(ctx context.Context, env *sequencer.Environment, step recipe.Step) (sequencer.Outcome, error) {
	decoded, err := step.DecodeArgs()
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewProcessError("invalid step arguments", err)
	}
	args := decoded.(*recipe.FetchArgs)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewNetworkError("failed to build request", err).
			WithDetail("url", args.URL)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return sequencer.Outcome{}, sequencer.NewNetworkError("download failed", err).
			WithDetail("url", args.URL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sequencer.Outcome{}, sequencer.NewNetworkError(
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).
			WithDetail("url", args.URL)
	}

	dest := env.HostPath(args.Dest)
	if err := ensureParentDir(ctx, h.files, dest); err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to create destination directory", err).
			WithDetail("dest", args.Dest)
	}
	if err := h.files.WriteFile(ctx, dest, resp.Body, 0644); err != nil {
		return sequencer.Outcome{}, sequencer.NewFilesystemError("failed to write destination file", err).
			WithDetail("dest", args.Dest)
	}

	return sequencer.Outcome{Changed: true, Detail: fmt.Sprintf("fetched %s", args.URL)}, nil
}
