package imagekit

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotate turns src counter-clockwise by angle degrees about its center.
// The affine matrix matches OpenCV's getRotationMatrix2D; pixels that map
// outside the source take the value of the nearest edge pixel.
func rotate(src *image.Gray, angle float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	rad := angle * math.Pi / 180
	a, b := math.Cos(rad), math.Sin(rad)

	dst := image.NewGray(image.Rect(0, 0, w, h))

	// Replicated border: seed every pixel with its nearest source pixel,
	// then let the interpolator overwrite the covered area.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			sx := int(math.Floor(a*dx - b*dy + cx))
			sy := int(math.Floor(b*dx + a*dy + cy))
			dst.Pix[y*dst.Stride+x] = src.Pix[clamp(sy, 0, h-1)*src.Stride+clamp(sx, 0, w-1)]
		}
	}

	s2d := f64.Aff3{
		a, b, (1-a)*cx - b*cy,
		-b, a, b*cx + (1-a)*cy,
	}
	draw.CatmullRom.Transform(dst, s2d, src, src.Rect, draw.Src, nil)
	return dst
}
