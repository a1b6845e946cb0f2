package pdfocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // gif decoding for DecodeConfig
	_ "image/jpeg" // jpeg decoding for DecodeConfig
	_ "image/png"  // png decoding for DecodeConfig
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/labdigitize/pkg/hocr"
)

// createPDFFromImages builds a PDF with one page per image and the matching
// hOCR page drawn over it. Inputs are validated by Assemble.
func createPDFFromImages(doc *hocr.HOCR, images [][]byte, cfg Config) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCreator("labdigitize", true)

	for i, page := range doc.Pages {
		hocrW, hocrH := page.BBox.X2, page.BBox.Y2
		imgW, imgH, imageType, err := detectImage(images[i])
		if err != nil {
			return nil, fmt.Errorf("failed to detect image type for page %d: %w", i+1, err)
		}
		if hocrW <= 0 || hocrH <= 0 {
			hocrW, hocrH = float64(imgW), float64(imgH)
		}
		w := pixelsToPoints(float64(imgW), cfg.DPI)
		h := pixelsToPoints(float64(imgH), cfg.DPI)

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		imageName := fmt.Sprintf("page%d", i+1)
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(images[i]))
		pdf.ImageOptions(imageName, 0, 0, w, h, false, opts, 0, "")

		transform := func(x, y float64) (float64, float64) {
			return normalizeCoords(x, y, hocrW, hocrH, w, h)
		}
		if err := drawOCRLayer(pdf, page, cfg, i+1, transform); err != nil {
			return nil, fmt.Errorf("failed to draw OCR layer for page %d: %w", i+1, err)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// detectImage returns the pixel size and fpdf image type of data.
func detectImage(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to decode image config: %w", err)
	}
	switch format {
	case "png", "jpeg", "gif":
	default:
		return 0, 0, "", fmt.Errorf("image format %s cannot be embedded", format)
	}
	return cfg.Width, cfg.Height, strings.ToUpper(format), nil
}
