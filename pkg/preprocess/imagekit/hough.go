package imagekit

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"

	"github.com/gardar/labdigitize/pkg/preprocess"
)

// sobelEdges marks pixels whose Sobel gradient reaches threshold. The
// convolution clips negative responses, so the gradient is taken on the
// image and on its negative and the stronger of the two wins. That keeps
// both the dark-to-light and the light-to-dark side of every stroke.
func sobelEdges(src *image.Gray, threshold int) *image.Gray {
	pos := effect.Sobel(src)
	neg := effect.Sobel(effect.Invert(src))
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*pos.Stride + x*4
			if int(max(pos.Pix[i], neg.Pix[i])) >= threshold {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// houghLines runs the standard Hough transform over non-zero pixels with a
// resolution of one pixel and one degree. Lines are local maxima of the
// accumulator with more than threshold votes, strongest first.
func houghLines(edges *image.Gray, threshold int) []preprocess.PolarLine {
	const thetaStep = math.Pi / 180
	w, h := edges.Rect.Dx(), edges.Rect.Dy()

	numAngle := int(math.Round(math.Pi / thetaStep))
	numRho := (w+h)*2 + 1
	stride := numRho + 2
	acc := make([]int, (numAngle+2)*stride)

	cosT := make([]float64, numAngle)
	sinT := make([]float64, numAngle)
	for n := range numAngle {
		cosT[n] = math.Cos(float64(n) * thetaStep)
		sinT[n] = math.Sin(float64(n) * thetaStep)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*edges.Stride+x] == 0 {
				continue
			}
			for n := range numAngle {
				r := int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + (numRho-1)/2
				acc[(n+1)*stride+r+1]++
			}
		}
	}

	type peak struct{ base, votes int }
	var peaks []peak
	for n := range numAngle {
		for r := range numRho {
			base := (n+1)*stride + r + 1
			v := acc[base]
			if v > threshold &&
				v > acc[base-1] && v >= acc[base+1] &&
				v > acc[base-stride] && v >= acc[base+stride] {
				peaks = append(peaks, peak{base: base, votes: v})
			}
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })

	lines := make([]preprocess.PolarLine, len(peaks))
	for i, p := range peaks {
		n := p.base/stride - 1
		r := p.base - (n+1)*stride - 1
		lines[i] = preprocess.PolarLine{
			Rho:   float64(r) - float64(numRho-1)*0.5,
			Theta: float64(n) * thetaStep,
		}
	}
	return lines
}
