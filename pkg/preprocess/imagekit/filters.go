package imagekit

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// median3 applies a 3x3 median filter, replicating edge pixels.
func median3(src *image.Gray) *image.Gray {
	return grayFrom(effect.Median(src, 1))
}

// adaptiveThreshold sets a pixel to white when it is brighter than the mean
// of its block x block neighbourhood minus c, and to black otherwise.
func adaptiveThreshold(src *image.Gray, block, c int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	// integral image with a zero row and column
	sum := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(src.Pix[y*src.Stride+x])
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}

	r := block / 2
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			total := sum[y1*(w+1)+x1] - sum[y0*(w+1)+x1] - sum[y1*(w+1)+x0] + sum[y0*(w+1)+x0]
			area := int64((y1 - y0) * (x1 - x0))
			if int64(src.Pix[y*src.Stride+x])*area > total-int64(c)*area {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// closeRect performs a morphological close (dilate, then erode) with a
// k x k kernel. k <= 1 returns a copy.
func closeRect(src *image.Gray, k int) *image.Gray {
	if k <= 1 {
		dst := image.NewGray(src.Rect)
		copy(dst.Pix, src.Pix)
		return dst
	}
	radius := float64(k-1) / 2
	return grayFrom(effect.Erode(effect.Dilate(src, radius), radius))
}

// grayFrom takes the red channel of an RGBA filter result. Every filter here
// runs on gray input, so the three colour channels are equal and alpha is
// ignored.
func grayFrom(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = row[x*4]
		}
	}
	return dst
}
