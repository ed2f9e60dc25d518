package imagerender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/scanerr"
)

// Poppler renders by shelling out to poppler's pdftoppm.
type Poppler struct {
	path string
}

// NewPoppler uses the pdftoppm found at path: either the binary or its directory.
func NewPoppler(path string) *Poppler { return &Poppler{path: path} }

func (*Poppler) Name() string { return BackendPoppler }

// Binary resolves the pdftoppm executable.
func (p *Poppler) Binary() (string, error) {
	if p.path == "" {
		return exec.LookPath("pdftoppm")
	}
	fi, err := os.Stat(p.path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		bin := filepath.Join(p.path, "pdftoppm")
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("pdftoppm not found in %s: %w", p.path, err)
		}
		return bin, nil
	}
	return p.path, nil
}

// Open renders every page to PNG in a private temp dir; Render decodes them.
func (p *Poppler) Open(ctx context.Context, pdfPath string, dpi int) (Source, error) {
	bin, err := p.Binary()
	if err != nil {
		return nil, &scanerr.RasterizationError{Err: fmt.Errorf("poppler not available: %w", err)}
	}

	dir, err := os.MkdirTemp("", "scanlike-render-*")
	if err != nil {
		return nil, &scanerr.IOError{Op: "mkdir", Path: os.TempDir(), Err: err}
	}

	start := time.Now()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-r", strconv.Itoa(dpi), "-png", pdfPath, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return nil, &scanerr.RasterizationError{Err: fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	files, err := pageFiles(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, &scanerr.RasterizationError{Err: err}
	}

	log.Debug().
		Str("bin", bin).
		Int("pages", len(files)).
		Int("dpi", dpi).
		Dur("took", time.Since(start)).
		Msg("pdftoppm rendered document")
	return &popplerSource{dir: dir, files: files}, nil
}

// pageFiles lists page-N.png outputs ordered by N. pdftoppm zero-pads N to the
// width of the page count.
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	var pages []numbered
	for _, m := range matches {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "page-"), ".png")
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		pages = append(pages, numbered{n, m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

type popplerSource struct {
	dir   string
	files []string
}

func (s *popplerSource) NumPage() int { return len(s.files) }

func (s *popplerSource) Render(ctx context.Context, page int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > len(s.files) {
		return nil, &scanerr.RasterizationError{Page: page, Err: fmt.Errorf("page out of range (document has %d pages)", len(s.files))}
	}
	f, err := os.Open(s.files[page-1])
	if err != nil {
		return nil, &scanerr.RasterizationError{Page: page, Err: err}
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, &scanerr.RasterizationError{Page: page, Err: fmt.Errorf("decode png: %w", err)}
	}
	return img, nil
}

func (s *popplerSource) Close() error { return os.RemoveAll(s.dir) }
