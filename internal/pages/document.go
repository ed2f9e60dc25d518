package pages

import (
	"errors"
	"fmt"
	"image"
	"io"
)

// Document is an ordered page sequence. It is either PdfPages, before rasterization,
// or RasterPages, after it. No operation on a Document reorders its pages.
type Document interface {
	Len() int
	isDocument()
}

// PageTree is the PDF page tree a PdfPages document wraps.
type PageTree interface {
	PageCount() int
	// Extract copies the given 1-based pages, in order, into a new tree.
	Extract(pages []int) (PageTree, error)
	Write(w io.Writer) error
}

// PdfPages holds opaque PDF page objects.
type PdfPages struct {
	Tree PageTree
}

func (d PdfPages) Len() int {
	if d.Tree == nil {
		return 0
	}
	return d.Tree.PageCount()
}

func (PdfPages) isDocument() {}

// Write serializes the wrapped page tree.
func (d PdfPages) Write(w io.Writer) error {
	if d.Tree == nil {
		return errors.New("no page tree")
	}
	return d.Tree.Write(w)
}

// RasterPages holds rendered pages.
type RasterPages []*image.RGBA

func (d RasterPages) Len() int { return len(d) }

func (RasterPages) isDocument() {}

// RemoveFrom drops the selected pages from doc and returns a new Document of the same kind.
func RemoveFrom(doc Document, sel Selection) (Document, error) {
	switch d := doc.(type) {
	case PdfPages:
		if d.Tree == nil {
			return d, nil
		}
		tree, err := d.Tree.Extract(Kept(d.Tree.PageCount(), sel))
		if err != nil {
			return nil, err
		}
		return PdfPages{Tree: tree}, nil
	case RasterPages:
		return RasterPages(Remove([]*image.RGBA(d), sel)), nil
	default:
		return nil, fmt.Errorf("unsupported document type %T", doc)
	}
}
