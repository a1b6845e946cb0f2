package preprocess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type fakeImage struct {
	name   string
	closed bool
}

func (f *fakeImage) Size() (int, int) { return 100, 50 }
func (f *fakeImage) Close() error {
	f.closed = true
	return nil
}

// fakeToolkit records the operations applied to each source image.
type fakeToolkit struct {
	mu       sync.Mutex
	lines    []PolarLine
	failLoad map[string]bool
	failOp   string
	ops      []string
	rotated  []float64
	images   []*fakeImage
}

func (f *fakeToolkit) record(op string) *fakeImage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	img := &fakeImage{name: op}
	f.images = append(f.images, img)
	return img
}

func (f *fakeToolkit) step(op string) (Image, error) {
	if f.failOp == op {
		return nil, fmt.Errorf("%s exploded", op)
	}
	return f.record(op), nil
}

func (f *fakeToolkit) Load(path string) (Image, error) {
	if f.failLoad[filepath.Base(path)] {
		return nil, errors.New("corrupt image data")
	}
	return f.record("load"), nil
}

func (f *fakeToolkit) Save(path string, img Image) error {
	if f.failOp == "save" {
		return errors.New("disk full")
	}
	f.record("save")
	return os.WriteFile(path, []byte(img.(*fakeImage).name), 0o644)
}

func (f *fakeToolkit) Grayscale(Image) (Image, error) { return f.step("grayscale") }
func (f *fakeToolkit) Edges(Image) (Image, error)     { return f.step("edges") }
func (f *fakeToolkit) HoughLines(Image) ([]PolarLine, error) {
	if f.failOp == "hough_lines" {
		return nil, errors.New("hough exploded")
	}
	f.record("hough_lines")
	return f.lines, nil
}
func (f *fakeToolkit) Rotate(_ Image, angle float64) (Image, error) {
	f.mu.Lock()
	f.rotated = append(f.rotated, angle)
	f.mu.Unlock()
	return f.step("rotate")
}
func (f *fakeToolkit) Denoise(Image) (Image, error)    { return f.step("denoise") }
func (f *fakeToolkit) Binarize(Image) (Image, error)   { return f.step("binarize") }
func (f *fakeToolkit) MorphClose(Image) (Image, error) { return f.step("morph_close") }

func (f *fakeToolkit) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.images {
		if !img.closed {
			return false
		}
	}
	return true
}

// fakeRasterizer writes one placeholder file per page.
type fakeRasterizer struct {
	pages int
	err   error
	dir   string
}

func (r *fakeRasterizer) Render(_ context.Context, _ string, _ int, outDir string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.dir = outDir
	var paths []string
	for i := 1; i <= r.pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i))
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func deg(d float64) float64 { return d * math.Pi / 180 }

func joinOps(ops []string) string { return strings.Join(ops, ",") }
