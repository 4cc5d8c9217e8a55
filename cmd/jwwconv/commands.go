package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/batch"
	"github.com/FocuswithJustin/jwwconv/internal/logging"
	"github.com/FocuswithJustin/jwwconv/internal/query"
	"github.com/FocuswithJustin/jwwconv/internal/render"
	"github.com/FocuswithJustin/jwwconv/internal/report"
)

// ReportFlags select a machine-readable conversion report.
type ReportFlags struct {
	Report     string `help:"Emit a conversion report in the given format (json)" placeholder:"FORMAT"`
	ReportPath string `help:"Write the report to this path instead of stdout" type:"path"`
}

func (f ReportFlags) validate() error {
	if f.Report != "" && f.Report != "json" {
		return errors.NewValidation("report", f.Report, "supported formats: json")
	}
	return nil
}

func (f ReportFlags) emit(e *env, v any) error {
	if f.Report == "" {
		return nil
	}
	return report.Emit(v, f.ReportPath, e.stdout)
}

// open validates opts before reading path, so a bad option never touches
// the file system.
func open(path string, opts drawing.ConvertOptions) (*drawing.Drawing, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return drawing.Open(path)
}

// AuditCmd runs conversion health checks on one drawing.
type AuditCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	JSON         bool   `name:"json" help:"Print the audit as JSON"`
	FailOnIssues bool   `help:"Exit with status 3 when issues are detected"`
	ConvertFlags `embed:""`
}

func (c *AuditCmd) Run(e *env) error {
	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed audit: %s", c.Path)
	}
	defer d.Release()
	a, err := report.AuditDrawing(d, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed audit: %s", c.Path)
	}

	if c.JSON {
		if err := e.json(a); err != nil {
			return err
		}
	} else {
		e.field("file", e.file(c.Path))
		e.field("has_issues", e.flag(a.HasIssues))
		e.field("issue_codes", list(a.IssueCodes))
		e.field("unresolved_count", a.UnresolvedCount)
		e.field("unsupported_count", a.UnsupportedCount)
		for _, w := range a.Warnings {
			e.field("warning", w)
		}
	}
	if c.FailOnIssues && a.HasIssues {
		return exitCode(exitIssues)
	}
	return nil
}

// BBoxCmd prints the extent of the top-level entities.
type BBoxCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	JSON         bool   `name:"json" help:"Print the extents as JSON"`
	ConvertFlags `embed:""`
}

func (c *BBoxCmd) Run(e *env) error {
	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed bbox: %s", c.Path)
	}
	defer d.Release()
	b, err := report.DrawingBBox(d, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed bbox: %s", c.Path)
	}
	if c.JSON {
		return e.json(b)
	}
	e.field("file", e.file(c.Path))
	e.field("bbox", formatBBox(b, true))
	return nil
}

// StatsCmd prints the entity distribution.
type StatsCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	JSON         bool   `name:"json" help:"Print the statistics as JSON"`
	ConvertFlags `embed:""`
}

func (c *StatsCmd) Run(e *env) error {
	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed stats: %s", c.Path)
	}
	defer d.Release()
	s, err := report.DrawingStats(d, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed stats: %s", c.Path)
	}
	if c.JSON {
		return e.json(s)
	}
	e.field("file", e.file(c.Path))
	e.field("entity_count", humanize.Comma(int64(s.EntityCount)))
	e.field("type_count", s.TypeCount)
	e.field("layer_count", s.LayerCount)
	e.field("color_count", s.ColorCount)
	e.field("by_type", counts(s.ByType))
	return nil
}

// ReportCmd prints the combined report.
type ReportCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	JSON         bool   `name:"json" help:"Print the report as JSON"`
	FailOnIssues bool   `help:"Exit with status 3 when issues are detected"`
	ConvertFlags `embed:""`
}

func (c *ReportCmd) Run(e *env) error {
	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed report: %s", c.Path)
	}
	defer d.Release()
	r, err := report.New(d, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed report: %s", c.Path)
	}

	if c.JSON {
		if err := e.json(r); err != nil {
			return err
		}
	} else {
		e.field("file", e.file(c.Path))
		e.field("has_issues", e.flag(r.Audit.HasIssues))
		e.field("entity_count", humanize.Comma(int64(r.Stats.EntityCount)))
		e.field("bbox", formatBBox(r.BBox, false))
	}
	if c.FailOnIssues && r.Audit.HasIssues {
		return exitCode(exitIssues)
	}
	return nil
}

// InfoCmd summarizes the parsed drawing.
type InfoCmd struct {
	Path string `arg:"" help:"Input .jww file" type:"existingfile"`
	JSON bool   `name:"json" help:"Print the parsed document as JSON"`
}

func (c *InfoCmd) Run(e *env) error {
	d, err := drawing.Open(c.Path)
	if err != nil {
		return errors.Wrapf(err, "failed info: %s", c.Path)
	}
	defer d.Release()
	doc := d.Document()
	if c.JSON {
		return e.json(doc)
	}

	exchange, err := d.Exchange(drawing.DefaultConvertOptions())
	if err != nil {
		return errors.Wrapf(err, "failed info: %s", c.Path)
	}
	e.field("file", e.file(c.Path))
	if st, err := os.Stat(c.Path); err == nil {
		e.field("size", humanize.Bytes(uint64(st.Size())))
	}
	e.field("blake3", d.Identity())
	e.field("version", doc.Header.Version)
	if memo := strings.TrimSpace(doc.Header.Memo); memo != "" {
		e.field("memo", memo)
	}
	e.field("entities", humanize.Comma(int64(doc.EntityTotal())))
	e.field("block_defs", len(doc.Summaries))
	e.field("unresolved_block_refs", list(doc.Validation.UnresolvedDefNumbers))
	e.field("unsupported_for_dxf", len(exchange.Unsupported))
	return nil
}

// ProbeCmd reports whether a file carries the Jw_cad signature.
type ProbeCmd struct {
	Path string `arg:"" help:"File to check" type:"existingfile"`
	JSON bool   `name:"json" help:"Print the result as JSON"`
}

func (c *ProbeCmd) Run(e *env) error {
	ok, err := drawing.ProbeFile(c.Path)
	if err != nil {
		return errors.Wrapf(err, "failed probe: %s", c.Path)
	}
	if c.JSON {
		return e.json(map[string]any{"path": c.Path, "jww": ok})
	}
	e.field("file", e.file(c.Path))
	e.field("jww", ok)
	return nil
}

// ToDXFCmd converts one drawing.
type ToDXFCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	Output       string `short:"o" help:"Output .dxf path (default: input name with .dxf)" type:"path"`
	ConvertFlags `embed:""`
	ReportFlags  `embed:""`
}

func (c *ToDXFCmd) Run(e *env) error {
	opts := c.options()
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	output := c.Output
	if output == "" {
		var err error
		if output, err = batch.OutputPath("", "", c.Path); err != nil {
			return err
		}
	}

	ctx := e.ctx
	logging.ConversionStart(ctx, c.Path, opts.ExplodeInserts, opts.MaxBlockNesting)
	var audit *report.Audit
	d, err := drawing.Open(c.Path)
	if err == nil {
		defer d.Release()
		err = d.SaveAs(output, opts)
	}
	if err == nil {
		audit, err = report.AuditDrawing(d, opts)
	}

	conv := report.NewConversion(c.Path, output, opts, audit, err)
	if err != nil {
		logging.ConversionError(ctx, c.Path, err, "output", output)
		e.failf("failed: %s -> %s: %v", c.Path, output, err)
	} else {
		fmt.Fprintf(e.stdout, "wrote: %s\n", e.file(output))
	}
	if rerr := c.emit(e, conv); rerr != nil {
		return rerr
	}
	if err != nil {
		return exitCode(exitFatal)
	}
	return nil
}

// PlotCmd renders a drawing to an image.
type PlotCmd struct {
	Path      string   `arg:"" help:"Input .jww file" type:"existingfile"`
	Output    string   `short:"o" help:"Output image path, .png or .svg (default: input name with .png)" type:"path"`
	Layers    []string `help:"Comma-separated layer names to draw"`
	DPI       int      `name:"dpi" help:"Output resolution" default:"150"`
	Size      float64  `help:"Canvas side in inches" default:"10"`
	LineWidth float64  `help:"Stroke width in points" default:"0.8"`
	InvertY   bool     `help:"Invert the Y axis"`
	NoText    bool     `help:"Hide TEXT entities"`
	NoPoints  bool     `help:"Hide POINT entities"`
	NoInserts bool     `help:"Hide INSERT markers"`

	ConvertFlags `embed:""`
}

func (c *PlotCmd) Run(e *env) error {
	opts := render.Options{
		Layers:    c.Layers,
		Size:      c.Size,
		DPI:       c.DPI,
		LineWidth: c.LineWidth,
		InvertY:   c.InvertY,
		NoText:    c.NoText,
		NoPoints:  c.NoPoints,
		NoInserts: c.NoInserts,
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	output := c.Output
	if output == "" {
		out, err := batch.OutputPath("", "", c.Path)
		if err != nil {
			return err
		}
		output = strings.TrimSuffix(out, ".dxf") + ".png"
	}
	if _, err := render.FormatFromPath(output); err != nil {
		return err
	}

	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed plot: %s", c.Path)
	}
	defer d.Release()
	doc, err := d.Exchange(c.options())
	if err != nil {
		return errors.Wrapf(err, "failed plot: %s", c.Path)
	}
	if err := render.WriteFile(output, doc, opts); err != nil {
		return errors.Wrapf(err, "failed plot: %s", c.Path)
	}
	fmt.Fprintf(e.stdout, "wrote: %s\n", e.file(output))
	return nil
}

// QueryCmd lists the exchange entities matching a selector.
type QueryCmd struct {
	Path         string `arg:"" help:"Input .jww file" type:"existingfile"`
	Selector     string `arg:"" optional:"" help:"Entity selector such as 'LINE ARC[color == 1]'"`
	JSON         bool   `name:"json" help:"Print matching entities as JSON"`
	ConvertFlags `embed:""`
}

func (c *QueryCmd) Run(e *env) error {
	sel, err := query.Parse(c.Selector)
	if err != nil {
		return err
	}
	d, err := open(c.Path, c.options())
	if err != nil {
		return errors.Wrapf(err, "failed query: %s", c.Path)
	}
	defer d.Release()
	ms, err := d.Modelspace(c.options())
	if err != nil {
		return errors.Wrapf(err, "failed query: %s", c.Path)
	}
	matched := ms.Filter(sel.Match)

	if c.JSON {
		return e.json(matched)
	}
	for _, ent := range matched {
		fmt.Fprintln(e.stdout, describe(ent))
	}
	e.field("matched", fmt.Sprintf("%d of %d", len(matched), ms.Len()))
	return nil
}

// describe formats an entity as one line of text.
func describe(ent dxf.Entity) string {
	p := ent.Properties()
	layer := p.Layer
	if layer == "" {
		layer = dxf.DefaultLayer
	}
	head := fmt.Sprintf("%-7s layer=%q color=%d", ent.Type(), layer, p.Color)
	switch v := ent.(type) {
	case *dxf.Line:
		return fmt.Sprintf("%s (%g, %g) -> (%g, %g)", head, v.X1, v.Y1, v.X2, v.Y2)
	case *dxf.Circle:
		return fmt.Sprintf("%s center=(%g, %g) r=%g", head, v.CenterX, v.CenterY, v.Radius)
	case *dxf.Arc:
		return fmt.Sprintf("%s center=(%g, %g) r=%g %g..%g", head, v.CenterX, v.CenterY, v.Radius, v.StartAngle, v.EndAngle)
	case *dxf.Ellipse:
		return fmt.Sprintf("%s center=(%g, %g) major=(%g, %g) ratio=%g", head, v.CenterX, v.CenterY, v.MajorAxisX, v.MajorAxisY, v.MinorRatio)
	case *dxf.Point:
		return fmt.Sprintf("%s at=(%g, %g)", head, v.X, v.Y)
	case *dxf.Text:
		return fmt.Sprintf("%s at=(%g, %g) %q", head, v.X, v.Y, v.Content)
	case *dxf.Solid:
		return fmt.Sprintf("%s (%g, %g) (%g, %g) (%g, %g) (%g, %g)", head, v.X1, v.Y1, v.X2, v.Y2, v.X3, v.Y3, v.X4, v.Y4)
	case *dxf.Insert:
		return fmt.Sprintf("%s block=%q at=(%g, %g) scale=(%g, %g) rot=%g", head, v.BlockName, v.X, v.Y, v.ScaleX, v.ScaleY, v.Rotation)
	}
	return head
}
