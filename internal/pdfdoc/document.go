// Package pdfdoc reads, trims and writes PDF page trees with pdfcpu.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/pages"
	"github.com/local/scanlike/internal/scanerr"
)

func init() {
	// keep pdfcpu from creating a config dir under $HOME
	api.DisableConfigDir()
}

// Dim is a page size in PDF points.
type Dim struct {
	Width  float64
	Height float64
}

// Document is an opened PDF. Removing every page yields a Document with an empty
// page tree, which still serializes.
type Document struct {
	ctx   *model.Context
	pages int
}

var _ pages.PageTree = (*Document)(nil)

// Configuration returns the relaxed pdfcpu configuration used for all reads.
func Configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open parses a PDF from rs.
func Open(rs io.ReadSeeker, name string) (*Document, error) {
	ctx, err := api.ReadContext(rs, Configuration())
	if err != nil {
		return nil, &scanerr.InputReadError{Path: name, Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, &scanerr.InputReadError{Path: name, Err: fmt.Errorf("invalid PDF: %w", err)}
	}
	return &Document{ctx: ctx, pages: ctx.PageCount}, nil
}

// OpenFile reads the whole file at path and parses it.
func OpenFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &scanerr.InputReadError{Path: path, Err: err}
	}
	return Open(bytes.NewReader(b), path)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// Extract copies the given 1-based pages, in order, into a new document. The
// receiver is left untouched. An empty list yields an empty page tree.
func (d *Document) Extract(pageNrs []int) (pages.PageTree, error) {
	if d.ctx == nil {
		return nil, errors.New("document is not open")
	}
	log.Debug().Int("total", d.pages).Int("kept", len(pageNrs)).Msg("copying pages")

	if len(pageNrs) == 0 {
		ctx, err := pdfcpu.CreateContextWithXRefTable(d.ctx.Configuration, types.PaperSize["A4"])
		if err != nil {
			return nil, fmt.Errorf("create empty document: %w", err)
		}
		return &Document{ctx: ctx}, nil
	}
	for _, p := range pageNrs {
		if p < 1 || p > d.pages {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", p, d.pages)
		}
	}
	ctx, err := pdfcpu.ExtractPages(d.ctx, pageNrs, false)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	return &Document{ctx: ctx, pages: len(pageNrs)}, nil
}

// PageDims returns each page's media box size.
func (d *Document) PageDims() ([]Dim, error) {
	if d.ctx == nil {
		return nil, nil
	}
	dims, err := d.ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}
	out := make([]Dim, len(dims))
	for i, dm := range dims {
		out[i] = Dim{Width: dm.Width, Height: dm.Height}
	}
	return out, nil
}

// Write serializes the document.
func (d *Document) Write(w io.Writer) error {
	if d.ctx == nil {
		return &scanerr.EncodingError{Stage: "pdf", Err: scanerr.ErrNoPages}
	}
	if err := api.WriteContext(d.ctx, w); err != nil {
		return &scanerr.EncodingError{Stage: "pdf", Err: err}
	}
	return nil
}
