// Package imagerender rasterizes PDF pages at a given resolution.
package imagerender

import (
	"context"
	"image"
	"strings"
)

// Source is an opened document that can render its pages.
type Source interface {
	NumPage() int
	// Render returns the 1-based page rendered at the source's DPI.
	Render(ctx context.Context, page int) (image.Image, error)
	Close() error
}

// Rasterizer opens a PDF for rendering at dpi.
type Rasterizer interface {
	Name() string
	Open(ctx context.Context, pdfPath string, dpi int) (Source, error)
}

// Backend names.
const (
	BackendFitz    = "mupdf"
	BackendPoppler = "poppler"
)

// New picks the renderer: the embedded MuPDF engine by default, poppler's pdftoppm
// when rendererPath points at it (a directory holding the binary or the binary itself).
func New(rendererPath string) Rasterizer {
	if strings.TrimSpace(rendererPath) == "" {
		return NewFitz()
	}
	return NewPoppler(rendererPath)
}
