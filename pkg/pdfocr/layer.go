package pdfocr

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/labdigitize/pkg/hocr"
)

// drawOCRLayer draws the words of page onto an optional content layer
// named after the page.
func drawOCRLayer(
	pdf *fpdf.Fpdf,
	page hocr.Page,
	cfg Config,
	pageNum int,
	transform func(x, y float64) (float64, float64),
) error {
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", cfg.LayerName, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.Font.Size)

	if cfg.Debug {
		pdf.SetTextColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0.0, "Normal")
	}

	encodingErrors := 0
	wordCount := 0
	for _, line := range page.Lines {
		for _, word := range line.Words {
			if !drawWord(pdf, word, transform, cfg) {
				encodingErrors++
			}
			wordCount++
		}
	}

	if !cfg.Debug {
		pdf.SetAlpha(1.0, "Normal")
	}
	pdf.EndLayer()

	if encodingErrors > 0 {
		cfg.logger().Warn("words not representable in Latin-1",
			"page", pageNum, "count", encodingErrors, "words", wordCount)
	}
	if wordCount > 0 && encodingErrors > wordCount/10 {
		return fmt.Errorf("character encoding issues in %d of %d words", encodingErrors, wordCount)
	}
	return nil
}

// drawWord scales a word to its box width and draws it at the box
// baseline. It reports false when the text had to be drawn unencoded.
func drawWord(pdf *fpdf.Fpdf, word hocr.Word, transform func(x, y float64) (float64, float64), cfg Config) bool {
	x, y := transform(word.BBox.X1, word.BBox.Y1)
	x2, y2 := transform(word.BBox.X2, word.BBox.Y2)
	wordWidth := x2 - x

	ok := true
	latin1, err := charmap.ISO8859_1.NewEncoder().String(word.Text)
	if err != nil {
		ok = false
		latin1 = word.Text
	}

	if strWidth := pdf.GetStringWidth(latin1); strWidth > 0 && wordWidth > 0 {
		pdf.SetFontSize(cfg.Font.Size * wordWidth / strWidth)
	}
	fontSize, _ := pdf.GetFontSize()
	baseline := y + fontSize*cfg.Font.AscentRatio

	pdf.Text(x, baseline, latin1)
	pdf.SetFontSize(cfg.Font.Size)

	if cfg.Debug {
		pdf.Rect(x, y, wordWidth, y2-y, "D")
	}
	return ok
}
