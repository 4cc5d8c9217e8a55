package main

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/catalog"
)

// RunsCmd lists the batch runs recorded in a catalog.
type RunsCmd struct {
	Catalog string `arg:"" help:"Catalog written by to-dxf-dir --catalog" type:"existingfile"`
	Run     string `help:"List the items of this run instead"`
	JSON    bool   `name:"json" help:"Print as JSON"`
}

// runItem is a catalog item with the number of successful conversions of
// its source content across all runs.
type runItem struct {
	catalog.Item
	Conversions int `json:"conversions"`
}

func (c *RunsCmd) Run(e *env) error {
	cat, err := catalog.OpenReadOnly(c.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	if c.Run != "" {
		return c.items(e, cat)
	}
	runs, err := cat.Runs(e.ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		if runs == nil {
			runs = []catalog.Run{}
		}
		return e.json(runs)
	}
	e.field("catalog", e.file(cat.Path()))
	e.field("runs", len(runs))
	for _, r := range runs {
		finished := "running"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(e.stdout, "%s started=%s took=%s converted=%d failed=%d explode=%t nesting=%d input=%s output=%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), finished, r.Converted, r.Failed,
			r.ExplodeInserts, r.MaxBlockNesting, r.InputDir, r.OutputDir)
	}
	return nil
}

func (c *RunsCmd) items(e *env, cat *catalog.Catalog) error {
	items, err := cat.Items(e.ctx, c.Run)
	if err != nil {
		return errors.Wrap(err, "failed to list run items")
	}
	if len(items) == 0 {
		return errors.NewNotFound("run", c.Run)
	}
	out := make([]runItem, 0, len(items))
	for _, it := range items {
		ri := runItem{Item: it}
		if it.BLAKE3 != "" {
			if ri.Conversions, err = cat.Conversions(e.ctx, it.BLAKE3); err != nil {
				return err
			}
		}
		out = append(out, ri)
	}
	if c.JSON {
		return e.json(out)
	}

	for _, it := range out {
		status := e.styles.ok.Render("ok")
		switch {
		case !it.OK:
			status = e.styles.bad.Render("failed")
		case it.HasIssues:
			status = e.styles.bad.Render("issues")
		}
		line := fmt.Sprintf("%s %s -> %s", status, e.file(it.Source), e.file(it.Output))
		if it.Reused {
			line += " reused"
		}
		if it.Error != "" {
			line += ": " + it.Error
		}
		if it.Conversions > 0 {
			line += fmt.Sprintf(" (converted %d times)", it.Conversions)
		}
		fmt.Fprintln(e.stdout, line)
	}
	return nil
}
