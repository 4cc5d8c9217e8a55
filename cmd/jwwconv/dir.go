package main

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/jwwconv/core/cas"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/batch"
	"github.com/FocuswithJustin/jwwconv/internal/catalog"
	"github.com/FocuswithJustin/jwwconv/internal/watch"
)

// ToDXFDirCmd converts every drawing in a directory.
type ToDXFDirCmd struct {
	InputDir  string `arg:"" help:"Directory containing .jww files" type:"existingdir"`
	OutputDir string `short:"o" help:"Output directory (default: next to each source)" type:"path"`
	Recursive bool   `short:"r" help:"Scan subdirectories recursively"`
	FailFast  bool   `help:"Stop at the first conversion error"`
	Jobs      int    `short:"j" help:"Number of concurrent conversions" default:"1"`
	Catalog   string `help:"Record the run in this SQLite catalog" type:"path"`
	Store     string `help:"Reuse conversions from this content store directory" type:"path"`

	ConvertFlags `embed:""`
	ReportFlags  `embed:""`
}

func (c *ToDXFDirCmd) Run(e *env) error {
	if err := c.options().Validate(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return errors.NewValidation("jobs", fmt.Sprint(c.Jobs), "must be at least 1")
	}
	opts := batch.Options{
		InputDir:  c.InputDir,
		OutputDir: c.OutputDir,
		Recursive: c.Recursive,
		Convert:   c.options(),
		Jobs:      c.Jobs,
		FailFast:  c.FailFast,
	}
	if c.Store != "" {
		store, err := cas.NewStore(c.Store)
		if err != nil {
			return errors.NewIO("open store", c.Store, err)
		}
		opts.Store = store
	}
	if c.Catalog != "" {
		cat, err := catalog.Open(c.Catalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		opts.Catalog = cat
	}

	s, err := batch.Run(e.ctx, opts)
	if errors.Is(err, errors.ErrNotFound) {
		e.failf("no .jww files found in %s", c.InputDir)
		return exitCode(exitNoInputs)
	}
	if s == nil {
		return err
	}

	for _, it := range s.Items {
		if !it.OK {
			e.failf("failed: %s -> %s: %s", it.Source, it.Output, *it.Error)
		}
	}
	fmt.Fprintf(e.stdout, "converted=%d failed=%d reused=%d output_dir=%s\n",
		s.Converted, s.Failed, s.Reused, e.file(s.OutputDir))
	if rerr := c.emit(e, s); rerr != nil {
		return rerr
	}
	if err != nil {
		return err
	}
	if s.Failed > 0 {
		return exitCode(exitFatal)
	}
	return nil
}

// WatchCmd converts drawings whenever they are written.
type WatchCmd struct {
	InputDir  string        `arg:"" help:"Directory to watch" type:"existingdir"`
	OutputDir string        `short:"o" help:"Output directory (default: next to each source)" type:"path"`
	Recursive bool          `short:"r" help:"Watch subdirectories recursively"`
	Debounce  time.Duration `help:"Quiet period before converting a changed file" default:"250ms"`
	Initial   bool          `help:"First convert sources whose output is missing or stale"`
	Store     string        `help:"Reuse conversions from this content store directory" type:"path"`

	ConvertFlags `embed:""`
}

func (c *WatchCmd) Run(e *env) error {
	if err := c.options().Validate(); err != nil {
		return err
	}
	opts := watch.Options{
		InputDir:  c.InputDir,
		OutputDir: c.OutputDir,
		Recursive: c.Recursive,
		Convert:   c.options(),
		Debounce:  c.Debounce,
		Initial:   c.Initial,
	}
	if c.Store != "" {
		store, err := cas.NewStore(c.Store)
		if err != nil {
			return errors.NewIO("open store", c.Store, err)
		}
		opts.Store = store
	}
	w, err := watch.New(opts)
	if err != nil {
		return err
	}
	defer w.Close()

	results, err := w.Watch(e.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "watching: %s\n", e.file(c.InputDir))
	for conv := range results {
		if !conv.OK {
			e.failf("failed: %s -> %s: %s", conv.Source, conv.Output, *conv.Error)
			continue
		}
		status := "ok"
		if conv.Audit != nil && conv.Audit.HasIssues {
			status = e.styles.bad.Render("issues")
		}
		fmt.Fprintf(e.stdout, "wrote: %s [%s]\n", e.file(conv.Output), status)
	}
	return nil
}
