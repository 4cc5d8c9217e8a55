// Package batch converts every drawing under a directory to DXF.
//
// Files are converted by a bounded pool of workers. Results are reported
// in sorted input order regardless of completion order. When a content
// store is configured, a source whose bytes were converted before with the
// same options is copied from the store instead of being rebuilt.
package batch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/jwwconv/core/cas"
	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
	"github.com/FocuswithJustin/jwwconv/internal/catalog"
	"github.com/FocuswithJustin/jwwconv/internal/logging"
	"github.com/FocuswithJustin/jwwconv/internal/report"
	"github.com/FocuswithJustin/jwwconv/internal/validation"
)

// auditSuffix names the store variant holding the audit of a stored build.
const auditSuffix = ".audit"

// errStop ends the pool after a failure in fail-fast mode.
var errStop = stderrors.New("stopped after first failure")

// Options configures a batch run.
type Options struct {
	InputDir string
	// OutputDir receives the converted files, mirroring the layout under
	// InputDir. Empty writes each output next to its source.
	OutputDir string
	Recursive bool
	Convert   drawing.ConvertOptions
	// Jobs is the number of concurrent conversions; values below 1 mean 1.
	Jobs int
	// FailFast stops scheduling new files after the first failure.
	FailFast bool
	// Store, when set, caches converted output by source identity.
	Store *cas.Store
	// Catalog, when set, records the run and every item.
	Catalog *catalog.Catalog
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID           string               `json:"run_id"`
	InputDir        string               `json:"input_dir"`
	OutputDir       string               `json:"output_dir"`
	Recursive       bool                 `json:"recursive"`
	ExplodeInserts  bool                 `json:"explode_inserts"`
	MaxBlockNesting int                  `json:"max_block_nesting"`
	Converted       int                  `json:"converted"`
	Failed          int                  `json:"failed"`
	Reused          int                  `json:"reused"`
	Items           []*report.Conversion `json:"items"`
}

// Collect returns the source drawings in dir in sorted order. Names
// ending in .jww or .jww.xz match regardless of case.
func Collect(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewIO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidation("input-dir", dir, "not a directory")
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && validation.IsSource(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.NewIO("walk", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.NewIO("read", dir, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && validation.IsSource(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the DXF path for src. With an empty outputDir the
// output sits next to src; otherwise the path of src relative to inputDir
// is recreated under outputDir. A source outside inputDir is rejected
// rather than written outside outputDir.
func OutputPath(inputDir, outputDir, src string) (string, error) {
	dst := src
	if outputDir != "" {
		rel, err := filepath.Rel(inputDir, src)
		if err != nil {
			return "", errors.NewValidation("source", src, "not under the input directory")
		}
		if rel, err = validation.SanitizePath(outputDir, rel); err != nil {
			return "", errors.NewValidation("source", src, "not under the input directory: "+err.Error())
		}
		dst = filepath.Join(outputDir, rel)
	}
	return trimSourceExt(dst) + ".dxf", nil
}

func trimSourceExt(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range []string{".jww.xz", ".jww"} {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Run converts every drawing collected from opts.InputDir. Per-file
// failures are recorded in the summary; the returned error is reserved
// for invalid options, an unreadable or empty input directory, catalog
// failures and cancellation. An input directory without drawings yields
// an error matching errors.ErrNotFound.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.Convert.Validate(); err != nil {
		return nil, err
	}
	files, err := Collect(opts.InputDir, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewNotFound("drawings", opts.InputDir)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = opts.InputDir
	}
	s := &Summary{
		RunID:           uuid.New().String(),
		InputDir:        opts.InputDir,
		OutputDir:       outputDir,
		Recursive:       opts.Recursive,
		ExplodeInserts:  opts.Convert.ExplodeInserts,
		MaxBlockNesting: opts.Convert.MaxBlockNesting,
		Items:           []*report.Conversion{},
	}
	ctx = logging.WithRunID(ctx, s.RunID)
	started := time.Now()

	if opts.Catalog != nil {
		err := opts.Catalog.BeginRun(ctx, catalog.Run{
			ID:              s.RunID,
			StartedAt:       started,
			InputDir:        s.InputDir,
			OutputDir:       s.OutputDir,
			ExplodeInserts:  s.ExplodeInserts,
			MaxBlockNesting: s.MaxBlockNesting,
		})
		if err != nil {
			return nil, err
		}
	}
	logging.InfoContext(ctx, "batch_start", "input_dir", s.InputDir, "files", len(files), "jobs", max(1, opts.Jobs))

	results := make([]*result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Jobs))
	for i, src := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := convert(gctx, opts, src)
			results[i] = res
			if res.err != nil && opts.FailFast {
				return errStop
			}
			return nil
		})
	}
	werr := g.Wait()

	// Record the outcome even when the run was cancelled.
	rctx := context.WithoutCancel(ctx)

	for _, res := range results {
		if res == nil {
			continue
		}
		s.Items = append(s.Items, res.conv)
		switch {
		case res.err != nil:
			s.Failed++
		case res.reused:
			s.Converted++
			s.Reused++
		default:
			s.Converted++
		}
		if opts.Catalog != nil {
			if err := opts.Catalog.RecordItem(rctx, res.item(s.RunID)); err != nil {
				logging.LoggerFromContext(ctx).Warn("catalog_record_failed", "source", res.conv.Source, "error", err.Error())
			}
		}
	}

	if opts.Catalog != nil {
		if err := opts.Catalog.FinishRun(rctx, s.RunID, time.Now(), s.Converted, s.Failed); err != nil {
			return s, err
		}
	}
	logging.InfoContext(ctx, "batch_done",
		"converted", s.Converted,
		"failed", s.Failed,
		"reused", s.Reused,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if werr != nil && !stderrors.Is(werr, errStop) {
		return s, werr
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}
	return s, nil
}

type result struct {
	conv     *report.Conversion
	identity string
	reused   bool
	err      error
}

func (r *result) item(runID string) catalog.Item {
	it := catalog.Item{
		RunID:  runID,
		Source: r.conv.Source,
		Output: r.conv.Output,
		BLAKE3: r.identity,
		OK:     r.conv.OK,
		Reused: r.reused,
	}
	if r.conv.Error != nil {
		it.Error = *r.conv.Error
	}
	if a := r.conv.Audit; a != nil {
		it.UnresolvedCount = a.UnresolvedCount
		it.UnsupportedCount = a.UnsupportedCount
		it.HasIssues = a.HasIssues
	}
	return it
}

// ConvertOne converts a single source the way Run does, using the output
// layout, store and conversion settings of opts. It reports whether the
// output was copied from the store.
func ConvertOne(ctx context.Context, opts Options, src string) (*report.Conversion, bool) {
	res := convert(ctx, opts, src)
	return res.conv, res.reused
}

func convert(ctx context.Context, opts Options, src string) *result {
	conv := opts.Convert
	dst, err := OutputPath(opts.InputDir, opts.OutputDir, src)
	if err != nil {
		return failed(ctx, src, src, "", conv, err)
	}
	logging.ConversionStart(ctx, src, conv.ExplodeInserts, conv.MaxBlockNesting)
	start := time.Now()

	data, err := archive.ReadFile(src)
	if err != nil {
		return failed(ctx, src, dst, "", conv, errors.NewIO("read", src, err))
	}
	identity := cas.Identity(data)
	variant := cas.Variant(conv.ExplodeInserts, conv.MaxBlockNesting)

	if out, audit, ok := lookup(ctx, opts.Store, identity, variant); ok {
		if err := archive.WriteFile(dst, out); err != nil {
			return failed(ctx, src, dst, identity, conv, errors.NewIO("write", dst, err))
		}
		audit.SourcePath = src
		logging.ConversionDone(ctx, src, dst, 0, time.Since(start), "reused", true)
		return &result{conv: report.NewConversion(src, dst, conv, audit, nil), identity: identity, reused: true}
	}

	d, err := drawing.FromBytes(src, data)
	if err != nil {
		return failed(ctx, src, dst, identity, conv, err)
	}
	defer d.Release()
	doc, err := d.Exchange(conv)
	if err != nil {
		return failed(ctx, src, dst, identity, conv, err)
	}
	out := dxf.Marshal(doc)
	if err := archive.WriteFile(dst, out); err != nil {
		return failed(ctx, src, dst, identity, conv, errors.NewIO("write", dst, err))
	}
	audit := report.NewAudit(src, &d.Document().Validation, doc)
	store(ctx, opts.Store, identity, variant, out, audit)

	logging.ConversionDone(ctx, src, dst, len(doc.Entities), time.Since(start), "has_issues", audit.HasIssues)
	return &result{conv: report.NewConversion(src, dst, conv, audit, nil), identity: identity}
}

func failed(ctx context.Context, src, dst, identity string, conv drawing.ConvertOptions, err error) *result {
	logging.ConversionError(ctx, src, err, "output", dst)
	return &result{conv: report.NewConversion(src, dst, conv, nil, err), identity: identity, err: err}
}

// lookup returns a stored build and its audit. Both entries must be
// present and readable.
func lookup(ctx context.Context, s *cas.Store, identity, variant string) ([]byte, *report.Audit, bool) {
	if s == nil || !s.Has(identity, variant) || !s.Has(identity, variant+auditSuffix) {
		return nil, nil, false
	}
	out, err := s.Get(identity, variant)
	if err != nil {
		return nil, nil, false
	}
	raw, err := s.Get(identity, variant+auditSuffix)
	if err != nil {
		return nil, nil, false
	}
	var audit report.Audit
	if err := json.Unmarshal(raw, &audit); err != nil {
		logging.LoggerFromContext(ctx).Warn("store_audit_invalid", "identity", identity, "error", err.Error())
		return nil, nil, false
	}
	return out, &audit, true
}

// store saves a build for reuse. Failures only cost a rebuild later, so
// they are logged and otherwise ignored.
func store(ctx context.Context, s *cas.Store, identity, variant string, out []byte, audit *report.Audit) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(audit)
	if err == nil {
		err = s.Put(identity, variant, out)
	}
	if err == nil {
		err = s.Put(identity, variant+auditSuffix, raw)
	}
	if err != nil {
		logging.LoggerFromContext(ctx).Warn("store_put_failed", "identity", identity, "error", err.Error())
	}
}
