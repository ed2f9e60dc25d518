// Package assembler turns processed raster pages back into a PDF.
package assembler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/pdfdoc"
	"github.com/local/scanlike/internal/scanerr"
)

// DefaultQuality is the JPEG quality used for scanned pages.
const DefaultQuality = 90

// EncodeJPEG encodes img as a baseline JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &scanerr.EncodingError{Stage: "jpeg", Err: err}
	}
	return buf.Bytes(), nil
}

// Pack writes a PDF with one page per JPEG, in order. Each page is exactly as
// large as its image, one point per pixel.
func Pack(w io.Writer, jpegs [][]byte) error {
	if len(jpegs) == 0 {
		return &scanerr.EncodingError{Stage: "pdf", Err: scanerr.ErrNoPages}
	}

	imgs := make([]io.Reader, len(jpegs))
	var total int
	for i, b := range jpegs {
		imgs[i] = bytes.NewReader(b)
		total += len(b)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full

	if err := api.ImportImages(nil, w, imgs, imp, pdfdoc.Configuration()); err != nil {
		return &scanerr.EncodingError{Stage: "pdf", Err: fmt.Errorf("import images: %w", err)}
	}

	log.Debug().Int("pages", len(jpegs)).Int("jpeg_bytes", total).Msg("packed raster pages into PDF")
	return nil
}

// Assemble encodes every page at quality and packs them with Pack.
func Assemble(w io.Writer, pages []image.Image, quality int) error {
	jpegs := make([][]byte, len(pages))
	for i, img := range pages {
		b, err := EncodeJPEG(img, quality)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		jpegs[i] = b
	}
	return Pack(w, jpegs)
}

// Passthrough copies the document bytes unchanged.
func Passthrough(dst io.Writer, src io.Reader) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("copy document: %w", err)
	}
	return n, nil
}
