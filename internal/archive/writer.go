package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/jwwconv/internal/validation"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// Compress writes data to w as a single xz stream.
func Compress(w io.Writer, data []byte) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := xzw.Write(data); err != nil {
		xzw.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	return nil
}

// WriteFile writes data to path through a temporary file in the same
// directory followed by a rename, so readers never see a partial file.
// A .xz suffix compresses the content. Parent directories are created.
func WriteFile(path string, data []byte) error {
	if err := validation.ValidatePath(path); err != nil {
		return fmt.Errorf("output path: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if IsCompressed(path) {
		err = Compress(tempFile, data)
	} else {
		_, err = tempFile.Write(data)
	}
	if err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}
