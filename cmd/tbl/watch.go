package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

var watchCmd = &command{
	args: "FILE",
	help: "print rows appended to a document until interrupted",
	flags: func(fs *pflag.FlagSet) {
		fs.Bool("all", false, "print the rows already present first")
	},
	run: func(ctx context.Context, a *app, args []string) error {
		if err := exactArgs(args, 1, "FILE"); err != nil {
			return err
		}
		all, _ := a.flags.GetBool("all")
		return a.watch(ctx, args[0], all)
	},
}

// watch follows path. The directory is watched rather than the file since
// atomic saves replace the file.
func (a *app) watch(ctx context.Context, path string, all bool) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	seen := 0
	if !all {
		seen = -1
	}
	if seen, err = a.tail(path, seen); err != nil {
		return err
	}
	lim := rate.NewLimiter(rate.Limit(a.cfg.Watch.RatePerSec), a.cfg.Watch.Burst)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			if err := lim.Wait(ctx); err != nil {
				return err
			}
			n, err := a.tail(path, seen)
			if err != nil {
				// Writers may be midway through an update.
				slog.WarnContext(ctx, "failed to read document", "file", path, "err", err)
				continue
			}
			seen = n
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "error watching document", "file", path, "err", err)
		}
	}
}

// tail prints the rows of path after the first seen ones and returns the row
// count. A negative seen prints nothing.
func (a *app) tail(path string, seen int) (n int, err error) {
	r, err := a.openReader(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	for row, err := range r.Rows() {
		if err != nil {
			return n, err
		}
		if seen >= 0 && n >= seen {
			if err := a.printRow(row); err != nil {
				return n, err
			}
		}
		n++
	}
	if n < seen {
		slog.Info("document shrank", "file", path, "rows", n, "previous", seen)
	}
	return n, nil
}
