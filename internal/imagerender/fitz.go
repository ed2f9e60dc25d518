package imagerender

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/scanerr"
)

// Fitz renders with the MuPDF engine linked through go-fitz. No external tools needed.
type Fitz struct{}

// NewFitz creates a go-fitz based rasterizer.
func NewFitz() *Fitz { return &Fitz{} }

func (*Fitz) Name() string { return BackendFitz }

// Open opens the PDF with MuPDF. go-fitz serializes calls on one document, so
// Render is safe from several goroutines.
func (*Fitz) Open(_ context.Context, pdfPath string, dpi int) (Source, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, &scanerr.RasterizationError{Err: fmt.Errorf("failed to open PDF: %w", err)}
	}
	return &fitzSource{doc: doc, dpi: dpi}, nil
}

type fitzSource struct {
	doc *fitz.Document
	dpi int
}

func (s *fitzSource) NumPage() int { return s.doc.NumPage() }

func (s *fitzSource) Render(ctx context.Context, page int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > s.doc.NumPage() {
		return nil, &scanerr.RasterizationError{Page: page, Err: fmt.Errorf("page out of range (document has %d pages)", s.doc.NumPage())}
	}

	// go-fitz uses 0-based indexing
	img, err := s.doc.ImageDPI(page-1, float64(s.dpi))
	if err != nil {
		return nil, &scanerr.RasterizationError{Page: page, Err: err}
	}

	b := img.Bounds()
	log.Debug().
		Int("page", page).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("dpi", s.dpi).
		Msg("rendered page")
	return img, nil
}

func (s *fitzSource) Close() error { return s.doc.Close() }
