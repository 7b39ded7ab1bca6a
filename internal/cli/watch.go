package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/blimu-dev/svc-gen/internal/logger"
)

// DefaultDebounce is how long watch waits for writes to settle.
const DefaultDebounce = 300 * time.Millisecond

// RunWatch generates once, then again whenever the model, the config file or
// an OpenAPI document next to the model changes, until ctx is done.
// Failed generations are logged and watching continues.
func RunWatch(ctx context.Context, p RunGenerateParams, debounce time.Duration) error {
	if p.ModelPath == "" {
		return errors.New("--model is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := logger.Named("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to start file watcher")
	}
	defer watcher.Close()

	// Directories are watched so editors that replace files are seen too.
	dirs := map[string]bool{filepath.Dir(absPath(p.ModelPath)): true}
	if p.ConfigPath != "" {
		dirs[filepath.Dir(absPath(p.ConfigPath))] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}

	regenerate := func() {
		if err := RunGenerate(ctx, p); err != nil {
			log.Errorw("Generation failed", logger.FieldError, err)
		}
	}
	regenerate()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			log.Debugw("Change detected", logger.FieldFile, ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("Watcher error", logger.FieldError, err)
		case <-timer.C:
			regenerate()
		}
	}
}

// relevant reports whether ev may change the generated output.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Ext(ev.Name) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}
