// Package archive reads and writes drawing files that may be xz-compressed.
// A .xz suffix selects compression on both sides; everything else passes
// through unchanged.
package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/jwwconv/internal/validation"
)

// xzMagic is the xz stream header.
var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Reader wraps a file with transparent xz decompression.
type Reader struct {
	io.Reader
	file       *os.File
	compressed bool
}

// IsCompressed reports whether path names an xz stream.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}

// HasXZMagic reports whether data starts with the xz stream header.
func HasXZMagic(data []byte) bool {
	return bytes.HasPrefix(data, xzMagic)
}

// NewReader opens path for reading. Content is decompressed when the
// name ends in .xz or the stream starts with the xz header.
func NewReader(path string) (*Reader, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("source path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	br := bufio.NewReader(f)
	head, _ := br.Peek(len(xzMagic))
	if !IsCompressed(path) && !HasXZMagic(head) {
		return &Reader{Reader: br, file: f}, nil
	}

	xzr, err := xz.NewReader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	return &Reader{Reader: xzr, file: f, compressed: true}, nil
}

// Compressed reports whether the reader decompresses its input.
func (r *Reader) Compressed() bool {
	return r.compressed
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadFile returns the decompressed content of path. Malformed paths and
// files whose plain or decompressed size exceeds validation.MaxFileSize
// are rejected.
func ReadFile(path string) ([]byte, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("source path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if err := validation.CheckSize(info.Size()); err != nil {
		return nil, err
	}

	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r)
}

// Decompress returns data decompressed when it carries the xz header and
// data itself otherwise.
func Decompress(data []byte) ([]byte, error) {
	if !HasXZMagic(data) {
		return data, nil
	}
	xzr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	return readLimited(xzr)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, validation.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if err := validation.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}
