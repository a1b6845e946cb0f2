// Package imagekit is a pure-Go preprocess.Toolkit. It needs no native
// libraries, which makes it the default backend and the one used in tests.
//
// Median, dilate, erode and Sobel come from bild. The Hough accumulator and
// the mean adaptive threshold are local, and follow their OpenCV namesakes
// closely enough for OCR cleanup. Rotation uses Catmull-Rom interpolation
// from golang.org/x/image/draw.
package imagekit

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gardar/labdigitize/pkg/preprocess"
)

// Options tunes the filters. Zero values select the defaults.
type Options struct {
	EdgeThreshold  int // Sobel magnitude marking an edge, default 150
	HoughThreshold int // minimum accumulator votes, default 100
	BlockSize      int // adaptive threshold window, odd, default 11
	C              int // constant subtracted from the local mean, default 2
	MorphKernel    int // closing kernel size, default 1
}

// Toolkit implements preprocess.Toolkit on the standard image types.
type Toolkit struct {
	opts Options
}

var _ preprocess.Toolkit = (*Toolkit)(nil)

// New returns a Toolkit with the given options.
func New(opts Options) *Toolkit {
	if opts.EdgeThreshold <= 0 {
		opts.EdgeThreshold = 150
	}
	if opts.HoughThreshold <= 0 {
		opts.HoughThreshold = 100
	}
	if opts.BlockSize <= 1 {
		opts.BlockSize = 11
	}
	if opts.BlockSize%2 == 0 {
		opts.BlockSize++
	}
	if opts.C == 0 {
		opts.C = 2
	}
	if opts.MorphKernel <= 0 {
		opts.MorphKernel = 1
	}
	return &Toolkit{opts: opts}
}

// Image wraps a decoded image. It holds no native resources.
type Image struct {
	img image.Image
}

// Wrap adapts an in-memory image to the Toolkit.
func Wrap(img image.Image) *Image { return &Image{img: img} }

// Unwrap returns the underlying image.
func (i *Image) Unwrap() image.Image { return i.img }

func (i *Image) Size() (int, int) {
	b := i.img.Bounds()
	return b.Dx(), b.Dy()
}

func (i *Image) Close() error { return nil }

func (t *Toolkit) Load(path string) (preprocess.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Wrap(img), nil
}

// Save encodes the image as TIFF for .tif/.tiff paths and PNG otherwise.
func (t *Toolkit) Save(path string, img preprocess.Image) error {
	src, err := unwrap(img)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		err = tiff.Encode(f, src, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, src)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (t *Toolkit) Grayscale(img preprocess.Image) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(g), nil
}

func (t *Toolkit) Denoise(img preprocess.Image) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(median3(g)), nil
}

func (t *Toolkit) Binarize(img preprocess.Image) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(adaptiveThreshold(g, t.opts.BlockSize, t.opts.C)), nil
}

func (t *Toolkit) MorphClose(img preprocess.Image) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(closeRect(g, t.opts.MorphKernel)), nil
}

func (t *Toolkit) Edges(img preprocess.Image) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(sobelEdges(g, t.opts.EdgeThreshold)), nil
}

func (t *Toolkit) HoughLines(edges preprocess.Image) ([]preprocess.PolarLine, error) {
	g, err := gray(edges)
	if err != nil {
		return nil, err
	}
	return houghLines(g, t.opts.HoughThreshold), nil
}

func (t *Toolkit) Rotate(img preprocess.Image, angle float64) (preprocess.Image, error) {
	g, err := gray(img)
	if err != nil {
		return nil, err
	}
	return Wrap(rotate(g, angle)), nil
}

func unwrap(img preprocess.Image) (image.Image, error) {
	i, ok := img.(*Image)
	if !ok || i == nil || i.img == nil {
		return nil, fmt.Errorf("imagekit: unexpected image type %T", img)
	}
	return i.img, nil
}

// gray returns the image as an *image.Gray anchored at the origin,
// converting with the BT.601 luma weights when needed.
func gray(img preprocess.Image) (*image.Gray, error) {
	src, err := unwrap(img)
	if err != nil {
		return nil, err
	}
	if g, ok := src.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g, nil
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), src, b.Min, draw.Src)
	return g, nil
}
