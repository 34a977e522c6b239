// Package imageutil handles the image plumbing around remote calls:
// self-contained data URLs, MIME detection, and downscaling reference images
// before they are persisted.
package imageutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidDataURL is returned when a string is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data URL")

// EncodeDataURL returns data as a self-contained "data:<mime>;base64,..." URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and raw bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", nil, ErrInvalidDataURL
	}
	meta := strings.TrimPrefix(header, "data:")
	mimeType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" || mimeType == "" {
		return "", nil, fmt.Errorf("%w: cannot extract MIME type", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}

// DetectMIME returns the declared MIME type when it names an image, otherwise
// it sniffs the content.
func DetectMIME(data []byte, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if IsImageMIME(declared) {
		return declared
	}
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}

// IsImageMIME reports whether mimeType is an image type.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && len(mimeType) > len("image/")
}

// ExtensionFor returns a file extension (with dot) for an image MIME type.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
