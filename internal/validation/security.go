// Package validation holds the input checks shared by the extractor and its
// command line: the single URL normalizer and the document path checks.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MarkdownExtensions are the file extensions the extractor accepts.
var MarkdownExtensions = []string{".md", ".markdown", ".mdown", ".mkd"}

// ValidatePath validates a file path to prevent path traversal attacks
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	restrictedPaths := []string{
		"/etc/passwd",
		"/etc/shadow",
		"/proc/",
		"/sys/",
		"/dev/",
		"/boot/",
	}

	cleanPathLower := strings.ToLower(cleanPath)
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(cleanPathLower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\x00"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}

// ValidateDocumentPath combines the path and extension checks used for
// every markdown file named on the command line or found by the watcher.
func ValidateDocumentPath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	return ValidateFileExtension(path, MarkdownExtensions)
}

// SanitizeInput removes control characters except common whitespace.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}
	return sanitized.String()
}
