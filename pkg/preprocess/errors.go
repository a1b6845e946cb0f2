package preprocess

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for documents that are neither a PDF nor
// one of the supported image formats. It aborts the whole document.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ImageLoadError reports a page image that could not be decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("could not load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// ImageOpError reports a failed toolkit operation on a page.
type ImageOpError struct {
	Op   string
	Path string
	Err  error
}

func (e *ImageOpError) Error() string {
	return fmt.Sprintf("image operation %s failed on %s: %v", e.Op, e.Path, e.Err)
}

func (e *ImageOpError) Unwrap() error { return e.Err }

// RasterizationError reports a PDF that could not be rendered to page images.
type RasterizationError struct {
	Path string
	Err  error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("failed to rasterize %s: %v", e.Path, e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }
