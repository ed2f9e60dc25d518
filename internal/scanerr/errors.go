package scanerr

import (
	"errors"
	"fmt"
)

// InputReadError means the input is not a readable or parseable PDF.
type InputReadError struct {
	Path string
	Err  error
}

func (e *InputReadError) Error() string {
	return fmt.Sprintf("read input %s: %v", e.Path, e.Err)
}

func (e *InputReadError) Unwrap() error { return e.Err }

// MalformedTokenError names a page-range token that is neither an integer nor a valid range.
type MalformedTokenError struct {
	Token string
	Err   error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed page token %q: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("malformed page token %q", e.Token)
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

// RasterizationError is returned when the renderer is unavailable or fails on a page.
// Page is 1-based; 0 means the failure is not tied to a page.
type RasterizationError struct {
	Page int
	Err  error
}

func (e *RasterizationError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("rasterize page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("rasterize: %v", e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }

// EncodingError covers image encoding and PDF serialization failures.
type EncodingError struct {
	Stage string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Stage, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IOError is a filesystem failure on the output or a temporary artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrNoPages is wrapped when a document has no pages left to serialize.
var ErrNoPages = errors.New("document has no pages")
