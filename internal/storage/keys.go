package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// objectKey builds prefix/YYYY/MM/name.
func objectKey(prefix string, now time.Time, name string) string {
	now = now.UTC()
	return path.Join(prefix, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), name)
}

// extensionFor prefers the filename's extension and falls back to the
// content type's subtype ("audio/webm" -> ".webm").
func extensionFor(filename, contentType string) string {
	if ext := filepath.Ext(sanitizeFilename(filename)); ext != "" && len(ext) < 10 {
		return strings.ToLower(ext)
	}
	parts := strings.SplitN(contentType, "/", 2)
	if len(parts) != 2 {
		return ""
	}
	subtype := parts[1]
	if i := strings.IndexAny(subtype, ";+"); i >= 0 {
		subtype = subtype[:i]
	}
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return ""
	}
	return "." + sanitizeFilename(subtype)
}

// sanitizeFilename removes or replaces characters that could be problematic in object keys.
// The original filename is kept separately for display.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	if filename == "." || filename == "/" {
		filename = ""
	}

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		// Truncate but preserve extension if present
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
