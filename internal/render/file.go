package render

import (
	"bytes"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
	"github.com/FocuswithJustin/jwwconv/internal/validation"
)

// Format is an output image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// FormatFromPath picks the image format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	switch validation.FileTypeFromName(path) {
	case validation.FileTypePNG:
		return FormatPNG, nil
	case validation.FileTypeSVG:
		return FormatSVG, nil
	}
	return "", errors.NewValidation("output", path, "plot output must end in .png or .svg")
}

// WriteFile plots doc to path in the format its extension names. The
// image is written through a temporary file and renamed into place.
func WriteFile(path string, doc *dxf.Document, opts Options) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = PNG(&buf, doc, opts)
	case FormatSVG:
		err = SVG(&buf, doc, opts)
	}
	if err != nil {
		return err
	}
	if err := archive.WriteFile(path, buf.Bytes()); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}
