package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/raymyers/linepp/pkg/preproc"
)

// watcher reruns a full preprocessing pass whenever one of the files the
// previous pass read changes. Directories are watched rather than files
// so that editors replacing a file by rename are noticed.
type watcher struct {
	opts   *preproc.Options
	out    io.Writer
	logger *slog.Logger

	fs    *fsnotify.Watcher
	dirs  map[string]bool
	files map[string]bool
}

func watch(ctx context.Context, opts *preproc.Options, out io.Writer, logger *slog.Logger) error {
	if len(opts.Includes)+len(opts.Inputs) == 0 {
		return errors.New("--watch needs at least one input file")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	defer fs.Close()

	w := &watcher{
		opts:   opts,
		out:    out,
		logger: logger,
		fs:     fs,
		dirs:   make(map[string]bool),
	}
	if err := w.track(nil); err != nil {
		return err
	}
	if err := w.pass(); err != nil {
		return err
	}
	return w.loop(ctx)
}

// pass runs the preprocessor once and refreshes the watched file set.
// Preprocessing errors are logged, not returned, so a broken input can be
// fixed while watching.
func (w *watcher) pass() error {
	p, err := preproc.Run(w.opts, nil, w.out, w.logger)
	if err != nil {
		w.logger.Error("preprocessing failed", "err", err)
	}

	var deps []string
	if p != nil {
		deps = p.Dependencies()
	}
	return w.track(deps)
}

func (w *watcher) track(deps []string) error {
	w.files = make(map[string]bool)
	paths := append(append(append([]string(nil), w.opts.MacroIncludes...), w.opts.Includes...), w.opts.Inputs...)
	paths = append(paths, deps...)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = true
		w.logger.Debug("watching directory", "dir", dir)
	}
	return nil
}

func (w *watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("change detected", "file", event.Name, "op", event.Op.String())
			if err := w.pass(); err != nil {
				return err
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if w.opts.Output != "" {
		if out, err := filepath.Abs(w.opts.Output); err == nil && out == abs {
			return false
		}
	}
	return w.files[abs]
}
