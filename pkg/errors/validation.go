package errors

import (
	"path/filepath"
	"strings"
)

// MaxSourceBytes bounds the size of a single source submitted for bundling.
const MaxSourceBytes = 1 << 20

// ValidateSource checks user source before it is handed to the engine.
// It rejects oversized input and null bytes, which no transform accepts.
func ValidateSource(src string) error {
	if len(src) > MaxSourceBytes {
		return New(ErrCodeInvalidInput, "source too large: %d bytes (max %d)", len(src), MaxSourceBytes)
	}
	if strings.ContainsRune(src, 0) {
		return New(ErrCodeInvalidInput, "source contains null bytes")
	}
	return nil
}

var sourceExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
}

// ValidateEntryPath checks that path names a source file the CLI can bundle.
func ValidateEntryPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "entry path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return New(ErrCodeInvalidPath, "entry path contains null bytes")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !sourceExts[ext] {
		return New(ErrCodeInvalidPath, "unsupported entry extension %q (want .js, .jsx, .ts, .tsx or .mjs)", ext)
	}
	return nil
}
