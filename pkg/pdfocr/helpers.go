package pdfocr

// pointsPerInch is the PDF user-space resolution.
const pointsPerInch = 72.0

// pixelsToPoints converts an image dimension at dpi to PDF points.
func pixelsToPoints(px float64, dpi int) float64 {
	if dpi <= 0 {
		return px
	}
	return px * pointsPerInch / float64(dpi)
}

// normalizeCoords rescales hOCR bounding box coords to PDF coords.
func normalizeCoords(x, y, hocrW, hocrH, pdfW, pdfH float64) (float64, float64) {
	nx := (x / hocrW) * pdfW
	ny := (y / hocrH) * pdfH
	return nx, ny
}
