package printer

import (
	"strings"
)

// supportedTypes maps printable MIME types to the label shown to users.
var supportedTypes = map[string]string{
	"application/pdf": "PDF",
	"image/png":       "PNG",
	"image/jpeg":      "JPG",
	"image/jpg":       "JPG",
}

// SupportedLabels is the user-facing list of printable formats.
const SupportedLabels = "PDF, PNG, JPG"

// normalizeMIME strips parameters such as "; charset=binary" and lowercases.
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsSupported reports whether mimeType can be sent to the printer.
func IsSupported(mimeType string) bool {
	_, ok := supportedTypes[normalizeMIME(mimeType)]
	return ok
}

// Extension returns the file extension for mimeType: its subtype.
func Extension(mimeType string) string {
	_, sub, ok := strings.Cut(normalizeMIME(mimeType), "/")
	if !ok || sub == "" {
		return "file"
	}
	return sub
}
