//go:build opencv

package cvkit

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/gardar/labdigitize/pkg/preprocess"
)

// Toolkit implements preprocess.Toolkit with OpenCV.
type Toolkit struct {
	opts Options
}

var _ preprocess.Toolkit = (*Toolkit)(nil)

// New returns an OpenCV toolkit.
func New(opts Options) (preprocess.Toolkit, error) {
	return &Toolkit{opts: opts.withDefaults()}, nil
}

// Mat wraps a gocv.Mat. Close must be called to release native memory.
type Mat struct {
	mat gocv.Mat
}

func (m *Mat) Size() (int, int) { return m.mat.Cols(), m.mat.Rows() }

func (m *Mat) Close() error { return m.mat.Close() }

func matOf(img preprocess.Image) (gocv.Mat, error) {
	m, ok := img.(*Mat)
	if !ok || m == nil {
		return gocv.Mat{}, fmt.Errorf("cvkit: unexpected image type %T", img)
	}
	if m.mat.Empty() {
		return gocv.Mat{}, errors.New("cvkit: empty image")
	}
	return m.mat, nil
}

// apply runs op into a fresh Mat and fails if OpenCV produced nothing.
func apply(img preprocess.Image, op func(src gocv.Mat, dst *gocv.Mat)) (preprocess.Image, error) {
	src, err := matOf(img)
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	op(src, &dst)
	if dst.Empty() {
		dst.Close()
		return nil, errors.New("opencv returned an empty image")
	}
	return &Mat{mat: dst}, nil
}

func (t *Toolkit) Load(path string) (preprocess.Image, error) {
	m := gocv.IMRead(path, gocv.IMReadColor)
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("opencv could not decode %s", path)
	}
	return &Mat{mat: m}, nil
}

func (t *Toolkit) Save(path string, img preprocess.Image) error {
	m, err := matOf(img)
	if err != nil {
		return err
	}
	if !gocv.IMWrite(path, m) {
		return fmt.Errorf("opencv could not write %s", path)
	}
	return nil
}

func (t *Toolkit) Grayscale(img preprocess.Image) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		if src.Channels() == 1 {
			src.CopyTo(dst)
			return
		}
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	})
}

func (t *Toolkit) Edges(img preprocess.Image) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Canny(src, dst, t.opts.CannyLow, t.opts.CannyHigh)
	})
}

func (t *Toolkit) HoughLines(edges preprocess.Image) ([]preprocess.PolarLine, error) {
	src, err := matOf(edges)
	if err != nil {
		return nil, err
	}
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(src, &lines, 1, float32(math.Pi/180), t.opts.HoughThreshold)

	out := make([]preprocess.PolarLine, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVecfAt(i, 0)
		if len(v) < 2 {
			continue
		}
		out = append(out, preprocess.PolarLine{Rho: float64(v[0]), Theta: float64(v[1])})
	}
	return out, nil
}

func (t *Toolkit) Rotate(img preprocess.Image, angle float64) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		w, h := src.Cols(), src.Rows()
		m := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), angle, 1.0)
		defer m.Close()
		gocv.WarpAffineWithParams(src, dst, m, image.Pt(w, h),
			gocv.InterpolationCubic, gocv.BorderReplicate, color.RGBA{})
	})
}

func (t *Toolkit) Denoise(img preprocess.Image) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.FastNlMeansDenoising(src, dst)
	})
}

func (t *Toolkit) Binarize(img preprocess.Image) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.AdaptiveThreshold(src, dst, 255, gocv.AdaptiveThresholdGaussian,
			gocv.ThresholdBinary, t.opts.BlockSize, t.opts.C)
	})
}

func (t *Toolkit) MorphClose(img preprocess.Image) (preprocess.Image, error) {
	return apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(t.opts.MorphKernel, t.opts.MorphKernel))
		defer kernel.Close()
		gocv.MorphologyEx(src, dst, gocv.MorphClose, kernel)
	})
}
