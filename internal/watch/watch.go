// Package watch re-converts drawings as they change on disk.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/jwwconv/core/cas"
	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/batch"
	"github.com/FocuswithJustin/jwwconv/internal/logging"
	"github.com/FocuswithJustin/jwwconv/internal/report"
	"github.com/FocuswithJustin/jwwconv/internal/validation"
)

// DefaultDebounce is the quiet period after the last event for a file
// before it is converted.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a watcher.
type Options struct {
	InputDir string
	// OutputDir mirrors the layout under InputDir; empty writes next to
	// each source.
	OutputDir string
	Recursive bool
	Convert   drawing.ConvertOptions
	// Debounce defaults to DefaultDebounce when zero.
	Debounce time.Duration
	// Initial converts sources whose output is missing or older than the
	// source before waiting for events.
	Initial bool
	Store   *cas.Store
}

// Watcher converts drawings under a directory whenever they are created
// or written.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
}

// New validates opts and starts watching opts.InputDir.
func New(opts Options) (*Watcher, error) {
	if err := opts.Convert.Validate(); err != nil {
		return nil, err
	}
	if opts.Debounce < 0 {
		return nil, errors.NewValidation("debounce", opts.Debounce.String(), "must not be negative")
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	info, err := os.Stat(opts.InputDir)
	if err != nil {
		return nil, errors.NewIO("stat", opts.InputDir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidation("input-dir", opts.InputDir, "not a directory")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIO("watch", opts.InputDir, err)
	}
	w := &Watcher{opts: opts, fsw: fsw}
	if err := w.addTree(opts.InputDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and, in recursive mode, every directory below it.
func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		if err := w.fsw.Add(dir); err != nil {
			return errors.NewIO("watch", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewIO("walk", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.NewIO("watch", path, err)
		}
		return nil
	})
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

// Watch delivers one conversion record per converted file until ctx is
// cancelled, after which the channel is closed. Watch may be called once.
func (w *Watcher) Watch(ctx context.Context) (<-chan *report.Conversion, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, errors.NewUnsupported("watch", "watcher is closed")
	}

	out := make(chan *report.Conversion, 16)
	go w.loop(ctx, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, out chan<- *report.Conversion) {
	defer close(out)
	bopts := batch.Options{
		InputDir:  w.opts.InputDir,
		OutputDir: w.opts.OutputDir,
		Convert:   w.opts.Convert,
		Store:     w.opts.Store,
	}
	emit := func(src string) bool {
		conv, _ := batch.ConvertOne(ctx, bopts, src)
		select {
		case out <- conv:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if w.opts.Initial {
		files, err := batch.Collect(w.opts.InputDir, w.opts.Recursive)
		if err != nil {
			logging.LoggerFromContext(ctx).Warn("watch_initial_failed", "error", err.Error())
		}
		for _, src := range files {
			if ctx.Err() != nil {
				return
			}
			dst, err := batch.OutputPath(w.opts.InputDir, w.opts.OutputDir, src)
			if err == nil && !Stale(src, dst) {
				continue
			}
			if !emit(src) {
				return
			}
		}
	}

	ready := make(chan string)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			src, convert := w.handleEvent(ev)
			if !convert {
				continue
			}
			if t, ok := timers[src]; ok {
				t.Reset(w.opts.Debounce)
				continue
			}
			timers[src] = time.AfterFunc(w.opts.Debounce, func() {
				select {
				case ready <- src:
				case <-ctx.Done():
				}
			})
		case src := <-ready:
			delete(timers, src)
			if !emit(src) {
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.LoggerFromContext(ctx).Warn("watch_error", "error", err.Error())
		}
	}
}

// handleEvent returns the source to convert for ev. New directories are
// added to the watch in recursive mode.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if w.opts.Recursive && ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name); err != nil {
				logging.Warn("watch_add_failed", "dir", ev.Name, "error", err.Error())
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() || !validation.IsSource(filepath.Base(ev.Name)) {
		return "", false
	}
	return ev.Name, true
}

// Stale reports whether dst is missing or older than src.
func Stale(src, dst string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return true
	}
	di, err := os.Stat(dst)
	if err != nil {
		return true
	}
	return di.ModTime().Before(si.ModTime())
}
