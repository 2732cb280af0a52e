package printer

import (
	"errors"
	"fmt"
)

// Print failures. Each maps to a distinct user-facing reply.
var (
	ErrNoQuotedMessage    = errors.New("no quoted message")
	ErrNoMediaInQuote     = errors.New("quoted message has no media")
	ErrDownloadFailed     = errors.New("media download failed")
	ErrUnsupportedType    = errors.New("unsupported media type")
	ErrPrinterUnavailable = errors.New("no printer available")
	ErrPrintSubmitFailed  = errors.New("print submission failed")
)

// UnsupportedTypeError names the rejected MIME type.
type UnsupportedTypeError struct {
	MIMEType string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q", e.MIMEType)
}

// Unwrap lets errors.Is match ErrUnsupportedType.
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
