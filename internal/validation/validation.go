// Package validation checks user-supplied paths and files before they reach
// the decoder or the file system.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Resource limits.
const (
	// MaxFileSize is the largest source drawing read into memory (256 MB).
	// The decoder holds the whole source, so this bounds its footprint.
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
)

// CheckSize rejects sizes above MaxFileSize.
func CheckSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, MaxFileSize)
	}
	return nil
}

// ValidatePath rejects empty or overlong paths and paths carrying NUL or
// other control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 {
			return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// SanitizePath cleans rel and checks that it stays inside baseDir once
// joined. It returns the cleaned relative path. Batch conversion uses it
// to keep mirrored outputs under the output directory.
func SanitizePath(baseDir, rel string) (string, error) {
	if err := ValidatePath(rel); err != nil {
		return "", err
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if escapes(clean) {
		return "", ErrPathTraversal
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	inside, err := filepath.Rel(base, filepath.Join(base, clean))
	if err != nil || escapes(inside) {
		return "", ErrPathTraversal
	}
	return clean, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// FileType is a file kind recognized by name.
type FileType string

const (
	FileTypeJWW     FileType = "jww"
	FileTypeJWWXZ   FileType = "jww.xz"
	FileTypeXZ      FileType = "xz"
	FileTypeDXF     FileType = "dxf"
	FileTypeDXFXZ   FileType = "dxf.xz"
	FileTypePNG     FileType = "png"
	FileTypeSVG     FileType = "svg"
	FileTypeJSON    FileType = "json"
	FileTypeUnknown FileType = "unknown"
)

// FileTypeFromName determines the expected file type from a filename.
func FileTypeFromName(filename string) FileType {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jww.xz"):
		return FileTypeJWWXZ
	case strings.HasSuffix(lower, ".dxf.xz"):
		return FileTypeDXFXZ
	}
	switch filepath.Ext(lower) {
	case ".jww":
		return FileTypeJWW
	case ".xz":
		return FileTypeXZ
	case ".dxf":
		return FileTypeDXF
	case ".png":
		return FileTypePNG
	case ".svg":
		return FileTypeSVG
	case ".json":
		return FileTypeJSON
	}
	return FileTypeUnknown
}

// IsSource reports whether filename names a source drawing.
func IsSource(filename string) bool {
	t := FileTypeFromName(filename)
	return t == FileTypeJWW || t == FileTypeJWWXZ
}
