package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxFileSize is the largest accepted document, 10 MiB.
	MaxFileSize int64 = 10 * 1024 * 1024

	UploadURLTTL   = 300 * time.Second
	DownloadURLTTL = 600 * time.Second
)

// AllowedMimeTypes is the upload allow-list, compared case-insensitively.
var AllowedMimeTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/jpg",
	"image/png",
}

// NormalizeMimeType lowercases m and reports whether it is allowed.
// Surrounding whitespace is not stripped, so " image/png " is rejected.
func NormalizeMimeType(m string) (string, bool) {
	m = strings.ToLower(m)
	for _, a := range AllowedMimeTypes {
		if m == a {
			return m, true
		}
	}
	return m, false
}

func allowedTypes() []string {
	out := make([]string, len(AllowedMimeTypes))
	copy(out, AllowedMimeTypes)
	return out
}

func keyAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// SanitizeFilename replaces every code point outside [A-Za-z0-9._-] with
// one '_'. Names that are blank or start with a path separator are
// rejected.
func SanitizeFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("filename is empty")
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, `\`) {
		return "", fmt.Errorf("filename must not start with a path separator")
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if keyAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String(), nil
}

// KeyPrefix is the object-key prefix every document of the application
// lives under.
func KeyPrefix(applicationID int64) string {
	return fmt.Sprintf("applications/%d/", applicationID)
}

// BuildFileKey derives applications/{id}/{millis}_{sanitized name}.
func BuildFileKey(applicationID, unixMillis int64, filename string) (string, error) {
	safe, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d_%s", KeyPrefix(applicationID), unixMillis, safe), nil
}
