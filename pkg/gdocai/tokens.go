package gdocai

import (
	"math"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/labdigitize/pkg/ocr"
)

// PageTokens converts the tokens of a Document AI page into pixel-space OCR
// tokens. Normalized vertices are scaled by the page dimension and layout
// confidence (0-1) is mapped onto the 0-100 scale used by Tesseract.
func PageTokens(page *documentaipb.Document_Page, fullText string) []ocr.Token {
	if page == nil {
		return nil
	}
	tokens := make([]ocr.Token, 0, len(page.Tokens))
	for _, t := range page.Tokens {
		text := tokenText(t, fullText)
		if text == "" {
			continue
		}
		box, ok := pixelBox(t.Layout, page.Dimension)
		if !ok {
			continue
		}
		var conf int
		if t.Layout != nil {
			conf = int(math.Round(float64(t.Layout.Confidence) * 100))
		}
		tokens = append(tokens, ocr.Token{Text: text, BBox: box, Confidence: conf})
	}
	return tokens
}

// pixelBox converts Document AI coordinates to a pixel bounding box.
// Normalized vertices (0-1) are preferred; absolute vertices are used when a
// processor only reports those.
func pixelBox(layout *documentaipb.Document_Page_Layout, dimension *documentaipb.Document_Page_Dimension) (ocr.BBox, bool) {
	if layout == nil || layout.BoundingPoly == nil {
		return ocr.BBox{}, false
	}

	var xs, ys []float64
	if nv := layout.BoundingPoly.NormalizedVertices; len(nv) > 0 && dimension != nil {
		for _, v := range nv {
			xs = append(xs, float64(v.X*dimension.Width))
			ys = append(ys, float64(v.Y*dimension.Height))
		}
	} else {
		for _, v := range layout.BoundingPoly.Vertices {
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
	}
	if len(xs) == 0 {
		return ocr.BBox{}, false
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	left, top := int(minX+0.5), int(minY+0.5)
	return ocr.BBox{
		Left:   left,
		Top:    top,
		Width:  int(maxX+0.5) - left,
		Height: int(maxY+0.5) - top,
	}, true
}
