// Package orchestrator runs one invocation end to end: load, remove pages,
// rasterize with scan effects, assemble and write the output atomically.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/assembler"
	"github.com/local/scanlike/internal/config"
	"github.com/local/scanlike/internal/dispatcher"
	"github.com/local/scanlike/internal/filetype"
	"github.com/local/scanlike/internal/imagerender"
	"github.com/local/scanlike/internal/metrics"
	"github.com/local/scanlike/internal/pages"
	"github.com/local/scanlike/internal/pdfdoc"
	"github.com/local/scanlike/internal/scaneffect"
	"github.com/local/scanlike/internal/scanerr"
	"github.com/local/scanlike/internal/storage"
)

// TempPrefix names every per-invocation work directory.
const TempPrefix = "scanlike-"

var (
	// ErrNoOperation means neither removal nor scan was requested; nothing is written.
	ErrNoOperation = errors.New("no operation specified")
	// ErrUnsupportedOutput rejects remote outputs other than s3://.
	ErrUnsupportedOutput = errors.New("output must be a local path or an s3:// reference")
	// ErrDPIRange rejects render resolutions outside the supported range.
	ErrDPIRange = fmt.Errorf("dpi must be between %d and %d", config.MinDPI, config.MaxDPI)
)

// Request describes one invocation.
type Request struct {
	Input  string // local path, file://, http(s):// or s3://
	Output string // local path or s3://
	Remove string // page range expression, empty for none
	Scan   bool

	DPI     int   // 0 means config.DefaultDPI
	Quality int   // 0 means assembler.DefaultQuality
	Seed    int64 // 0 picks one from the clock
}

// Mode labels the request for logs and metrics.
func (r Request) Mode() string {
	remove := strings.TrimSpace(r.Remove) != ""
	switch {
	case remove && r.Scan:
		return "remove+scan"
	case remove:
		return "remove"
	case r.Scan:
		return "scan"
	default:
		return "noop"
	}
}

// Result summarizes a finished run.
type Result struct {
	Output   string
	PagesIn  int
	Removed  int
	Dropped  int
	PagesOut int
	Scanned  bool
	Seed     int64
	Duration time.Duration
}

// ProgressFunc receives a completion percentage and a short message.
type ProgressFunc func(percent int, message string)

// Fetcher resolves input references and stores remote outputs.
type Fetcher interface {
	Fetch(ctx context.Context, ref, dir string) (string, error)
	Put(ctx context.Context, ref, localPath string) error
}

type Dependencies struct {
	Storage    Fetcher
	Rasterizer imagerender.Rasterizer
	Workers    int
	// TempDir is where work directories are created; os.TempDir() when empty.
	TempDir string
}

type Orchestrator struct {
	deps    Dependencies
	effects *scaneffect.Pipeline
}

func New(deps Dependencies) *Orchestrator {
	if deps.Storage == nil {
		deps.Storage = storage.New(storage.Options{})
	}
	if deps.Rasterizer == nil {
		deps.Rasterizer = imagerender.NewFitz()
	}
	return &Orchestrator{
		deps:    deps,
		effects: scaneffect.New(metrics.ObserveStage),
	}
}

// Run executes req. On error no output is left behind; the work directory is
// removed on every path.
func (o *Orchestrator) Run(ctx context.Context, req Request, progress ProgressFunc) (res Result, err error) {
	start := time.Now()
	mode := req.Mode()
	if progress == nil {
		progress = func(int, string) {}
	}
	defer func() {
		res.Duration = time.Since(start)
		result := "success"
		if err != nil {
			result = scanerr.Kind(err)
			if errors.Is(err, ErrNoOperation) {
				result = "noop"
			}
		}
		metrics.ObserveRun(mode, result, res.Duration)
	}()

	if mode == "noop" {
		log.Warn().Str("input", req.Input).Msg("no operation specified; nothing written")
		return res, ErrNoOperation
	}
	if req.DPI == 0 {
		req.DPI = config.DefaultDPI
	}
	if req.Scan && (req.DPI < config.MinDPI || req.DPI > config.MaxDPI) {
		return res, fmt.Errorf("%w: got %d", ErrDPIRange, req.DPI)
	}
	if req.Output == "" {
		return res, errors.New("output path is required")
	}
	if err := checkOutput(req.Output); err != nil {
		return res, err
	}

	work, err := os.MkdirTemp(o.deps.TempDir, TempPrefix+"*")
	if err != nil {
		return res, &scanerr.IOError{Op: "mkdir", Path: o.deps.TempDir, Err: err}
	}
	defer os.RemoveAll(work)

	l := log.With().Str("input", req.Input).Str("mode", mode).Logger()
	progress(5, "loading input")

	local, err := o.deps.Storage.Fetch(ctx, req.Input, work)
	if err != nil {
		return res, &scanerr.InputReadError{Path: req.Input, Err: err}
	}
	if err := filetype.RequirePDF(local); err != nil {
		return res, err
	}
	doc, err := pdfdoc.OpenFile(local)
	if err != nil {
		return res, err
	}
	res.PagesIn = doc.PageCount()
	res.PagesOut = res.PagesIn

	sel, err := pages.Parse(req.Remove, doc.PageCount())
	if err != nil {
		return res, err
	}
	res.Removed = sel.Len()
	res.Dropped = sel.Dropped
	if sel.Dropped > 0 {
		l.Warn().Int("dropped", sel.Dropped).Int("pages", doc.PageCount()).Msg("ignoring out-of-range page indices")
	}

	current := local
	switch {
	case !sel.Empty():
		progress(15, fmt.Sprintf("removing pages %s", sel))
		current, err = o.removePages(pages.PdfPages{Tree: doc}, sel, work)
		if err != nil {
			return res, err
		}
		res.PagesOut = res.PagesIn - sel.Len()
		metrics.AddProcessed("removed", sel.Len())
		l.Info().Str("removed", sel.String()).Int("remaining", res.PagesOut).Msg("pages removed")
	case strings.TrimSpace(req.Remove) != "":
		l.Warn().Str("remove", req.Remove).Msg("no requested page is in range; continuing without removal")
	}

	if req.Scan && res.PagesOut == 0 {
		return res, &scanerr.EncodingError{Stage: "pdf", Err: scanerr.ErrNoPages}
	}

	if req.Scan {
		scanned := filepath.Join(work, "scanned.pdf")
		seed, n, err := o.scan(ctx, current, scanned, req, progress)
		if err != nil {
			return res, err
		}
		current = scanned
		res.Scanned = true
		res.Seed = seed
		res.PagesOut = n
	}

	progress(95, "writing output")
	if err := o.deliver(ctx, current, req.Output); err != nil {
		return res, err
	}
	res.Output = req.Output
	progress(100, "done")

	l.Info().
		Str("output", req.Output).
		Int("pages_in", res.PagesIn).
		Int("pages_out", res.PagesOut).
		Bool("scanned", res.Scanned).
		Dur("took", time.Since(start)).
		Msg("run complete")
	return res, nil
}

func (o *Orchestrator) removePages(doc pages.Document, sel pages.Selection, work string) (string, error) {
	res, err := pages.RemoveFrom(doc, sel)
	if err != nil {
		return "", err
	}
	kept, ok := res.(pages.PdfPages)
	if !ok {
		return "", fmt.Errorf("removal produced %T, want PDF pages", res)
	}

	p := filepath.Join(work, "removed.pdf")
	f, err := os.Create(p)
	if err != nil {
		return "", &scanerr.IOError{Op: "create", Path: p, Err: err}
	}
	if err := kept.Write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", &scanerr.IOError{Op: "close", Path: p, Err: err}
	}
	return p, nil
}

// scan rasterizes every page of src, applies the effect chain on the worker pool
// and packs the JPEGs into dst in page order. It returns the seed used and the
// page count.
func (o *Orchestrator) scan(ctx context.Context, src, dst string, req Request, progress ProgressFunc) (int64, int, error) {
	source, err := o.deps.Rasterizer.Open(ctx, src, req.DPI)
	if err != nil {
		return 0, 0, err
	}
	defer source.Close()

	n := source.NumPage()
	if n == 0 {
		return 0, 0, &scanerr.EncodingError{Stage: "pdf", Err: scanerr.ErrNoPages}
	}

	pool := dispatcher.New(dispatcher.Config{Workers: o.deps.Workers, Seed: req.Seed})
	log.Info().
		Str("renderer", o.deps.Rasterizer.Name()).
		Int("pages", n).
		Int("dpi", req.DPI).
		Int("workers", pool.Workers()).
		Int64("seed", pool.Seed()).
		Msg("scanning pages")

	var done atomic.Int32
	jpegs, err := dispatcher.Run(ctx, pool, n, func(ctx context.Context, i int, rng *rand.Rand) ([]byte, error) {
		page := i + 1
		t := time.Now()
		img, err := source.Render(ctx, page)
		if err != nil {
			metrics.IncProcessed("failed")
			return nil, err
		}
		metrics.ObserveStage("render", time.Since(t))

		out, prm := o.effects.Process(img, rng)

		t = time.Now()
		data, err := assembler.EncodeJPEG(out, req.Quality)
		if err != nil {
			metrics.IncProcessed("failed")
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		metrics.ObserveStage("encode", time.Since(t))
		metrics.IncProcessed("scanned")

		log.Debug().
			Int("page", page).
			Float64("angle", prm.Angle).
			Bool("texture", prm.Texture).
			Bool("blur", prm.Blur).
			Msg("page scanned")

		d := int(done.Add(1))
		progress(20+70*d/n, fmt.Sprintf("scanned page %d/%d", d, n))
		return data, nil
	})
	if err != nil {
		return 0, 0, err
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, 0, &scanerr.IOError{Op: "create", Path: dst, Err: err}
	}
	t := time.Now()
	if err := assembler.Pack(f, jpegs); err != nil {
		f.Close()
		return 0, 0, err
	}
	if err := f.Close(); err != nil {
		return 0, 0, &scanerr.IOError{Op: "close", Path: dst, Err: err}
	}
	metrics.ObserveStage("pack", time.Since(t))
	return pool.Seed(), n, nil
}
