package filetype

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/scanerr"
)

const mimePDF = "application/pdf"

// ErrNotPDF is returned when the magic bytes are not those of a PDF.
var ErrNotPDF = errors.New("not a PDF document")

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
	IsPDF     bool
}

// Detect detects the actual file type using magic bytes, not filename
func Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	log.Debug().Str("mime", mtype.String()).Str("ext", mtype.Extension()).Str("file", filePath).Msg("detected file type")
	return info(mtype), nil
}

// DetectReader is Detect for an upload stream. Only the header is read.
func DetectReader(r io.Reader) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	return info(mtype), nil
}

func info(mtype *mimetype.MIME) *FileTypeInfo {
	return &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsPDF:     mtype.Is(mimePDF),
	}
}

// RequirePDF fails with an input read error unless filePath holds a PDF.
func RequirePDF(filePath string) error {
	info, err := Detect(filePath)
	if err != nil {
		return &scanerr.InputReadError{Path: filePath, Err: err}
	}
	if !info.IsPDF {
		return &scanerr.InputReadError{Path: filePath, Err: fmt.Errorf("%w: detected %s", ErrNotPDF, info.MIMEType)}
	}
	return nil
}
