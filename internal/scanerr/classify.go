package scanerr

import "errors"

// Kind names the error kind for logs and metric labels.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var inErr *InputReadError
	var tokErr *MalformedTokenError
	var rasErr *RasterizationError
	var encErr *EncodingError
	var ioErr *IOError

	switch {
	case errors.As(err, &tokErr):
		return "malformed_token"
	case errors.As(err, &inErr):
		return "input_read"
	case errors.As(err, &rasErr):
		return "rasterization"
	case errors.As(err, &encErr):
		return "encoding"
	case errors.As(err, &ioErr):
		return "io"
	default:
		return "internal"
	}
}

// IsRecoverable reports whether the caller may abort only the removal step and carry on.
// Every other kind is fatal for the invocation; nothing here is retried.
func IsRecoverable(err error) bool {
	var tokErr *MalformedTokenError
	return errors.As(err, &tokErr)
}
