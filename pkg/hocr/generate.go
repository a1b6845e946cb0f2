package hocr

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strconv"
	"text/template"
)

//go:embed templates/hocr.tmpl
var templateFS embed.FS

var hocrTemplate = template.Must(template.New("hocr.tmpl").Funcs(template.FuncMap{
	"esc":  html.EscapeString,
	"bbox": formatBBox,
	"conf": func(c float64) string { return strconv.FormatFloat(c, 'f', -1, 64) },
}).ParseFS(templateFS, "templates/hocr.tmpl"))

// GenerateHOCRDocument creates an hOCR HTML document from the HOCR struct
// Uses the embedded template to generate a complete HTML document
func GenerateHOCRDocument(doc *HOCR) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("hOCR document is nil")
	}
	var buf bytes.Buffer
	if err := hocrTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("error rendering hOCR template: %w", err)
	}
	return buf.String(), nil
}

func formatBBox(b BoundingBox) string {
	return fmt.Sprintf("%d %d %d %d", int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}
