// Package cas identifies source drawings by content and stores converted
// output under that identity, so an unchanged source is never converted
// twice.
package cas

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when no output is stored for a key.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when an identity is not a BLAKE3 hex digest.
var ErrInvalidHash = errors.New("invalid hash format")

// ErrInvalidVariant is returned for a variant that is not a plain token.
var ErrInvalidVariant = errors.New("invalid variant")

var variantPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// Store keeps converted output keyed by source identity and a variant
// naming the conversion options, e.g. "explode-32".
type Store struct {
	root string
}

// NewStore creates a store at root, creating the directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "out"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Variant names a conversion setting for use as a store key.
func Variant(explode bool, maxNesting int) string {
	if explode {
		return fmt.Sprintf("explode-%d", maxNesting)
	}
	return fmt.Sprintf("insert-%d", maxNesting)
}

// Put stores data for (identity, variant). An existing entry is kept.
func (s *Store) Put(identity, variant string, data []byte) error {
	path, err := s.path(identity, variant)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create prefix directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename blob: %w", err)
	}
	return nil
}

// Get returns the data stored for (identity, variant).
func (s *Store) Get(identity, variant string) ([]byte, error) {
	path, err := s.path(identity, variant)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Has reports whether an entry exists for (identity, variant).
func (s *Store) Has(identity, variant string) bool {
	path, err := s.path(identity, variant)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// path returns <root>/out/<first2>/<identity>.<variant>.
func (s *Store) path(identity, variant string) (string, error) {
	if !ValidIdentity(identity) {
		return "", ErrInvalidHash
	}
	if !variantPattern.MatchString(variant) {
		return "", ErrInvalidVariant
	}
	return filepath.Join(s.root, "out", identity[:2], identity+"."+variant), nil
}
