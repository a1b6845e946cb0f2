package hocr

import (
	"fmt"
	"math"

	"github.com/gardar/labdigitize/pkg/ocr"
)

// PageFromLines builds an hOCR page from reconstructed OCR lines. The page
// bounding box is the given image size; word and line ids follow the
// Tesseract naming scheme.
func PageFromLines(pageNumber int, imageName string, width, height int, lines []ocr.Line) Page {
	page := Page{
		ID:         fmt.Sprintf("page_%d", pageNumber),
		PageNumber: pageNumber,
		ImageName:  imageName,
		BBox:       NewBoundingBox(0, 0, float64(width), float64(height)),
		Lines:      make([]Line, 0, len(lines)),
	}

	wordIdx := 0
	for lidx, l := range lines {
		hl := Line{ID: fmt.Sprintf("line_%d_%d", pageNumber, lidx+1)}
		for _, t := range l {
			wordIdx++
			w := Word{
				ID:         fmt.Sprintf("word_%d_%d", pageNumber, wordIdx),
				Text:       t.Text,
				BBox:       NewBoundingBox(float64(t.BBox.Left), float64(t.BBox.Top), float64(t.BBox.Right()), float64(t.BBox.Bottom())),
				Confidence: float64(t.Confidence),
			}
			hl.Words = append(hl.Words, w)
			hl.BBox = hl.BBox.Union(w.BBox)
		}
		page.Lines = append(page.Lines, hl)
	}
	return page
}

// Tokens flattens the words of a page into OCR tokens in document order.
// Confidence is rounded to the nearest integer.
func (p Page) Tokens() []ocr.Token {
	var tokens []ocr.Token
	for _, l := range p.Lines {
		for _, w := range l.Words {
			tokens = append(tokens, ocr.Token{
				Text: w.Text,
				BBox: ocr.BBox{
					Left:   int(w.BBox.X1),
					Top:    int(w.BBox.Y1),
					Width:  int(w.BBox.X2 - w.BBox.X1),
					Height: int(w.BBox.Y2 - w.BBox.Y1),
				},
				Confidence: int(math.Round(w.Confidence)),
			})
		}
	}
	return tokens
}

// NewDocument wraps pages into an hOCR document with the standard metadata.
func NewDocument(system string, pages ...Page) *HOCR {
	return &HOCR{
		Title:    "Document OCR",
		Language: "unknown",
		Metadata: map[string]string{
			"ocr-system":          system,
			"ocr-number-of-pages": fmt.Sprintf("%d", len(pages)),
			"ocr-capabilities":    "ocr_page ocr_line ocrx_word",
		},
		Pages: pages,
	}
}
