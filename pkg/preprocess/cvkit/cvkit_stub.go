//go:build !opencv

package cvkit

import "github.com/gardar/labdigitize/pkg/preprocess"

// New reports ErrUnavailable; rebuild with -tags opencv to enable OpenCV.
func New(Options) (preprocess.Toolkit, error) {
	return nil, ErrUnavailable
}
