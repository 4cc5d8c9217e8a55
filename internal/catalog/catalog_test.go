package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/jwwconv/core/errors"
)

func openTemp(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "state", "catalog.db"))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := Run{
		ID:              "run-1",
		StartedAt:       start,
		InputDir:        "in",
		OutputDir:       "out",
		ExplodeInserts:  true,
		MaxBlockNesting: 8,
	}
	if err := c.BeginRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	items := []Item{
		{RunID: "run-1", Source: "in/b.jww", Output: "out/b.dxf", BLAKE3: "bb", OK: true, UnsupportedCount: 2, HasIssues: true},
		{RunID: "run-1", Source: "in/a.jww", Output: "out/a.dxf", OK: false, Error: "truncated"},
	}
	for _, it := range items {
		if err := c.RecordItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
	// re-recording a source replaces it
	items[1].OK, items[1].Error, items[1].BLAKE3, items[1].Reused = true, "", "aa", true
	if err := c.RecordItem(ctx, items[1]); err != nil {
		t.Fatal(err)
	}
	if err := c.FinishRun(ctx, "run-1", start.Add(time.Minute), 2, 0); err != nil {
		t.Fatal(err)
	}

	runs, err := c.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	run.FinishedAt = start.Add(time.Minute)
	run.Converted = 2
	if diff := cmp.Diff([]Run{run}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	got, err := c.Items(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Item{items[1], items[0]}, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	n, err := c.Conversions(ctx, "bb")
	if err != nil || n != 1 {
		t.Errorf("Conversions(bb) = %d, %v", n, err)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		if err := c.BeginRun(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := c.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || !runs[1].FinishedAt.IsZero() {
		t.Errorf("runs = %+v", runs)
	}
}

func TestItemRequiresRun(t *testing.T) {
	c := openTemp(t)
	if err := c.RecordItem(context.Background(), Item{RunID: "missing", Source: "a.jww"}); err == nil {
		t.Error("RecordItem() should enforce the run foreign key")
	}
	err := c.FinishRun(context.Background(), "missing", time.Now(), 0, 0)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("FinishRun(missing) = %v, want not found", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.BeginRun(ctx, Run{ID: "r", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	if c.Path() != path {
		t.Errorf("Path() = %s", c.Path())
	}
	runs, err := c.Runs(ctx)
	if err != nil || len(runs) != 1 {
		t.Errorf("runs after reopen = %v, %v", runs, err)
	}
}

func TestNewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if _, err := Open(path); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Open(newer schema) = %v, want unsupported", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	if _, err := OpenReadOnly(path); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("OpenReadOnly(missing) = %v, want not found", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("OpenReadOnly created the database")
	}

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.BeginRun(ctx, Run{ID: "r", StartedAt: time.Now(), InputDir: "in", OutputDir: "out", MaxBlockNesting: 32}); err != nil {
		t.Fatal(err)
	}
	c.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly() = %v", err)
	}
	defer ro.Close()
	runs, err := ro.Runs(ctx)
	if err != nil || len(runs) != 1 || runs[0].ID != "r" {
		t.Errorf("Runs() = %+v, %v", runs, err)
	}
	if err := ro.BeginRun(ctx, Run{ID: "w", StartedAt: time.Now()}); err == nil {
		t.Error("BeginRun through a read-only catalog should fail")
	}
}
