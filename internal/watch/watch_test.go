package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/jww"
	"github.com/FocuswithJustin/jwwconv/core/jww/jwwtest"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
	"github.com/FocuswithJustin/jwwconv/internal/report"
)

var convertOpts = drawing.ConvertOptions{MaxBlockNesting: 32}

func source(memo string) []byte {
	b := jwwtest.New(600)
	b.Header.Memo = memo
	b.Entities.Add(&jww.Line{EndX: 4, EndY: 4})
	return b.Bytes()
}

func next(t *testing.T, ch <-chan *report.Conversion) *report.Conversion {
	t.Helper()
	select {
	case conv, ok := <-ch:
		require.True(t, ok, "channel closed before a conversion arrived")
		return conv
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for conversion")
		return nil
	}
}

func TestNew(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := New(Options{InputDir: "/non/existent/path", Convert: convertOpts})
		assert.ErrorIs(t, err, errors.ErrIO)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.jww")
		require.NoError(t, os.WriteFile(path, source("a"), 0644))
		_, err := New(Options{InputDir: path, Convert: convertOpts})
		assert.ErrorIs(t, err, errors.ErrInvalidOption)
	})

	t.Run("invalid nesting", func(t *testing.T) {
		_, err := New(Options{InputDir: t.TempDir()})
		assert.ErrorIs(t, err, errors.ErrInvalidOption)
	})

	t.Run("negative debounce", func(t *testing.T) {
		_, err := New(Options{InputDir: t.TempDir(), Convert: convertOpts, Debounce: -time.Second})
		assert.ErrorIs(t, err, errors.ErrInvalidOption)
	})

	t.Run("default debounce", func(t *testing.T) {
		w, err := New(Options{InputDir: t.TempDir(), Convert: convertOpts})
		require.NoError(t, err)
		defer w.Close()
		assert.Equal(t, DefaultDebounce, w.opts.Debounce)
	})
}

func TestClose(t *testing.T) {
	w, err := New(Options{InputDir: t.TempDir(), Convert: convertOpts})
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	ch, err := w.Watch(context.Background())
	assert.ErrorIs(t, err, errors.ErrUnsupported)
	assert.Nil(t, ch)
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.jww")
	require.NoError(t, os.WriteFile(src, source("plan"), 0644))
	dxfOut := filepath.Join(dir, "plan.dxf")
	require.NoError(t, os.WriteFile(dxfOut, []byte("0\nEOF\n"), 0644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	w, err := New(Options{InputDir: dir, Convert: convertOpts, Recursive: true})
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create source", fsnotify.Event{Name: src, Op: fsnotify.Create}, true},
		{"write source", fsnotify.Event{Name: src, Op: fsnotify.Write}, true},
		{"write and chmod", fsnotify.Event{Name: src, Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: src, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: filepath.Join(dir, "gone.jww"), Op: fsnotify.Remove}, false},
		{"output file", fsnotify.Event{Name: dxfOut, Op: fsnotify.Write}, false},
		{"directory", fsnotify.Event{Name: sub, Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.handleEvent(tt.ev)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.ev.Name, got)
			}
		})
	}
}

func TestWatchConvertsNewFile(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	w, err := New(Options{InputDir: in, OutputDir: out, Convert: convertOpts, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, archive.WriteFile(filepath.Join(in, "room.jww"), source("room")))

	conv := next(t, ch)
	assert.True(t, conv.OK)
	assert.Equal(t, filepath.Join(out, "room.dxf"), conv.Output)
	require.NotNil(t, conv.Audit)
	assert.False(t, conv.Audit.HasIssues)
	_, err = os.Stat(conv.Output)
	assert.NoError(t, err)
}

func TestWatchReportsBrokenFile(t *testing.T) {
	in := t.TempDir()
	w, err := New(Options{InputDir: in, Convert: convertOpts, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, archive.WriteFile(filepath.Join(in, "bad.jww"), []byte("not a drawing")))

	conv := next(t, ch)
	assert.False(t, conv.OK)
	require.NotNil(t, conv.Error)
	assert.Nil(t, conv.Audit)
}

func TestWatchInitialConvertsStaleOnly(t *testing.T) {
	in := t.TempDir()
	fresh := filepath.Join(in, "fresh.jww")
	stale := filepath.Join(in, "stale.jww")
	require.NoError(t, os.WriteFile(fresh, source("fresh"), 0644))
	require.NoError(t, os.WriteFile(stale, source("stale"), 0644))

	// fresh.dxf is newer than its source
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(fresh, old, old))
	require.NoError(t, os.WriteFile(filepath.Join(in, "fresh.dxf"), []byte("0\nEOF\n"), 0644))

	w, err := New(Options{InputDir: in, Convert: convertOpts, Initial: true})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	conv := next(t, ch)
	assert.Equal(t, stale, conv.Source)
	assert.True(t, conv.OK)
	assert.False(t, Stale(stale, filepath.Join(in, "stale.dxf")))
}

func TestWatchClosesOnCancel(t *testing.T) {
	w, err := New(Options{InputDir: t.TempDir(), Convert: convertOpts})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := w.Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jww")
	dst := filepath.Join(dir, "a.dxf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	assert.True(t, Stale(src, dst), "missing output")

	require.NoError(t, os.WriteFile(dst, []byte("y"), 0644))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(src, past, past))
	assert.False(t, Stale(src, dst))

	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(src, future, future))
	assert.True(t, Stale(src, dst), "source newer than output")
}
