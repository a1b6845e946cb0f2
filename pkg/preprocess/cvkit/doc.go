// Package cvkit is a preprocess.Toolkit backed by OpenCV through gocv.
//
// It mirrors the classic OpenCV OCR cleanup: Canny edges, standard Hough
// lines, cubic warpAffine with replicated borders, non-local means
// denoising, Gaussian adaptive thresholding and a rectangular close.
//
// The package needs OpenCV 4 and is compiled only with the opencv build tag:
//
//	go build -tags opencv ./...
//
// Without the tag New reports ErrUnavailable.
package cvkit

import "errors"

// ErrUnavailable is returned by New when the binary was built without
// OpenCV support.
var ErrUnavailable = errors.New("cvkit: built without the opencv tag")

// Options tunes the OpenCV filters. Zero values select the defaults.
type Options struct {
	CannyLow       float32 // default 50
	CannyHigh      float32 // default 150
	HoughThreshold int     // default 100
	BlockSize      int     // adaptive threshold window, default 11
	C              float32 // default 2
	MorphKernel    int     // default 1
}

func (o Options) withDefaults() Options {
	if o.CannyLow <= 0 {
		o.CannyLow = 50
	}
	if o.CannyHigh <= 0 {
		o.CannyHigh = 150
	}
	if o.HoughThreshold <= 0 {
		o.HoughThreshold = 100
	}
	if o.BlockSize <= 1 {
		o.BlockSize = 11
	}
	if o.BlockSize%2 == 0 {
		o.BlockSize++
	}
	if o.C == 0 {
		o.C = 2
	}
	if o.MorphKernel <= 0 {
		o.MorphKernel = 1
	}
	return o
}
