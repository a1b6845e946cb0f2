// Package pdfocr assembles searchable PDF archives from cleaned page images
// and their recognized text.
//
// Every page image becomes one PDF page, sized from the image resolution.
// The recognized words are drawn over the image on an optional content
// layer, positioned and scaled to their hOCR bounding boxes, so the text is:
// - Fully searchable
// - Selectable with mouse drag operations
// - Hidden from normal view unless Debug is set
//
// Main Functions:
//
// - Assemble: Builds the PDF from image data and an hOCR document
// - WriteArchive: Reads page images from disk and writes the PDF to a file
package pdfocr

import (
	"fmt"
	"os"

	"github.com/gardar/labdigitize/pkg/hocr"
)

// Assemble creates a PDF from images, one per hOCR page, with the hOCR
// text layered over each image.
func Assemble(doc *hocr.HOCR, images [][]byte, cfg Config) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("HOCR document is nil")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("HOCR data contains no pages")
	}
	if len(images) != len(doc.Pages) {
		return nil, fmt.Errorf("got %d images for %d HOCR pages", len(images), len(doc.Pages))
	}
	for i, data := range images {
		if len(data) == 0 {
			return nil, fmt.Errorf("image %d is empty", i+1)
		}
		if _, _, _, err := detectImage(data); err != nil {
			return nil, fmt.Errorf("image %d has invalid format: %w", i+1, err)
		}
	}
	if cfg.LayerName == "" {
		cfg.LayerName = DefaultConfig().LayerName
	}
	if cfg.Font.Name == "" {
		cfg.Font = DefaultFont
	}

	out, err := createPDFFromImages(doc, images, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating PDF from images: %w", err)
	}
	return out, nil
}

// WriteArchive reads the page images at imagePaths and writes the
// assembled PDF to path.
func WriteArchive(path string, doc *hocr.HOCR, imagePaths []string, cfg Config) error {
	images := make([][]byte, len(imagePaths))
	for i, p := range imagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read page image: %w", err)
		}
		images[i] = data
	}

	out, err := Assemble(doc, images, cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	cfg.logger().Debug("archive written", "path", path, "pages", len(doc.Pages))
	return nil
}
