package recipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader loads recipe files and can watch them for changes, re-parsing
// on every write. Watching is a development aid: the sequencer itself
// always runs against an immutable, already-loaded recipe.
type Loader struct {
	parser  *CUEParser
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewLoader creates a new recipe loader.
func NewLoader(logger zerolog.Logger) (*Loader, error) {
	parser, err := NewCUEParser()
	if err != nil {
		return nil, err
	}
	return &Loader{parser: parser, logger: logger}, nil
}

// Load parses and validates the recipe at path.
func (l *Loader) Load(path string) (*Recipe, error) {
	r, err := l.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("recipe", r.Name).
		Str("path", path).
		Int("steps", len(r.Steps)).
		Msg("Recipe loaded")

	return r, nil
}

// Watch re-parses the recipe whenever the file changes and reports the
// outcome through onReload. It returns once the watcher is installed;
// watching stops when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, path string, onReload func(*Recipe, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go l.processEvents(ctx, path, onReload)

	l.logger.Info().Str("path", path).Msg("Watching recipe file")
	return nil
}

// processEvents debounces file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, path string, onReload func(*Recipe, error)) {
	var reloadTimer *time.Timer
	const reloadDelay = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = l.watcher.Close()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".cue") {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Recipe file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				onReload(l.parser.ParseFile(path))
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn().Err(err).Msg("Recipe watcher error")
		}
	}
}
