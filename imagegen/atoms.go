// Package imagegen turns the images a user points at into the inline
// payloads sent to the bridge.
//
// atoms.go contains pure utility functions with no dependencies.
package imagegen

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidDataURL is returned for malformed data: URLs.
var ErrInvalidDataURL = errors.New("imagegen: invalid data url")

// base64Scheme is the OneBot convention for inline files.
const base64Scheme = "base64://"

// IsInlineSource reports whether source carries its bytes inline instead of
// pointing at a server.
//
// Example:
//
//	IsInlineSource("data:image/png;base64,iVBOR...") // true
//	IsInlineSource("base64://iVBOR...")              // true
//	IsInlineSource("https://example.com/a.png")      // false
func IsInlineSource(source string) bool {
	return strings.HasPrefix(source, "data:") || strings.HasPrefix(source, base64Scheme)
}

// EncodeDataURL renders data as a base64 data URL.
//
// Example:
//
//	EncodeDataURL("image/png", pngBytes) // "data:image/png;base64,iVBOR..."
func EncodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeInline decodes a data: URL or base64:// source into its MIME type
// and bytes. base64:// sources carry no type, so it is sniffed.
func DecodeInline(source string) (string, []byte, error) {
	if rest, ok := strings.CutPrefix(source, base64Scheme); ok {
		data, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		return SniffMIME(data), data, nil
	}

	rest, ok := strings.CutPrefix(source, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if mime == "" {
		mime = SniffMIME(data)
	}
	return NormalizeMIME(mime), data, nil
}

// NormalizeMIME lowercases a Content-Type and strips its parameters.
//
// Example:
//
//	NormalizeMIME("Image/JPEG; charset=binary") // "image/jpeg"
//	NormalizeMIME("image/jpg")                  // "image/jpeg"
func NormalizeMIME(contentType string) string {
	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	lower = strings.TrimSpace(lower)
	if lower == "image/jpg" {
		return "image/jpeg"
	}
	return lower
}

// SniffMIME guesses the MIME type of image bytes.
func SniffMIME(data []byte) string {
	return NormalizeMIME(http.DetectContentType(data))
}

// IsImageMIME reports whether mime names an image type.
func IsImageMIME(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
