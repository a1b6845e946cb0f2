// Package preprocess turns scanned or photographed documents into clean,
// upright, binarized page images ready for text recognition.
//
// PDFs are rasterized page by page; images are cleaned directly. Cleaning
// runs grayscale, skew correction, denoising, adaptive binarization and a
// morphological close, in that order. The pixel work is delegated to a
// Toolkit so that a pure-Go and an OpenCV backend can be swapped freely;
// skew estimation itself lives here.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultDPI is the rasterization resolution for PDF pages.
const DefaultDPI = 300

// ImageExtensions lists the single-image formats accepted for cleaning.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// Options tunes a Normalizer.
type Options struct {
	DPI     int          // rasterization resolution, DefaultDPI when zero
	Workers int          // pages cleaned concurrently, 1 when zero
	Logger  *slog.Logger // slog.Default() when nil
}

// PageResult is the outcome of cleaning one page. Exactly one of Path and
// Err is set.
type PageResult struct {
	Index  int     // 1-based page number
	Source string  // image the page was cleaned from
	Path   string  // cleaned image
	Skew   float64 // rotation applied in degrees, 0 if the page was level
	Err    error
}

// Normalizer orchestrates rasterization and page cleaning.
type Normalizer struct {
	toolkit    Toolkit
	rasterizer Rasterizer
	dpi        int
	workers    int
	log        *slog.Logger
}

// NewNormalizer returns a Normalizer using the given backends. The
// rasterizer may be nil when only images are processed.
func NewNormalizer(tk Toolkit, r Rasterizer, opts Options) *Normalizer {
	n := &Normalizer{
		toolkit:    tk,
		rasterizer: r,
		dpi:        opts.DPI,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
	if n.dpi <= 0 {
		n.dpi = DefaultDPI
	}
	if n.workers <= 0 {
		n.workers = 1
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	return n
}

// Normalize cleans every page of the document at documentPath and writes the
// results to a fresh "<stem>-*" directory under outDir, so documents sharing
// a base name never share output files. Page failures are reported in the
// returned slice and do not abort sibling pages; document-level failures
// (unsupported format, rasterization) are returned as the error and leave
// nothing behind.
func (n *Normalizer) Normalize(ctx context.Context, documentPath, outDir string) ([]PageResult, error) {
	ext := strings.ToLower(filepath.Ext(documentPath))
	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))

	isPDF := ext == ".pdf"
	if !isPDF && !slices.Contains(ImageExtensions, ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, strings.TrimPrefix(ext, "."))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(outDir, stem+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var pages []PageResult
	if isPDF {
		pages, err = n.normalizePDF(ctx, documentPath, dir, stem)
	} else {
		pages = []PageResult{n.cleanPage(documentPath, filepath.Join(dir, stem+"_cleaned.png"), 1)}
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return pages, nil
}

func (n *Normalizer) normalizePDF(ctx context.Context, pdfPath, outDir, stem string) ([]PageResult, error) {
	if n.rasterizer == nil {
		return nil, &RasterizationError{Path: pdfPath, Err: errors.New("no rasterizer configured")}
	}

	tmp, err := os.MkdirTemp(outDir, "raster-")
	if err != nil {
		return nil, fmt.Errorf("failed to create raster directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	pages, err := n.rasterizer.Render(ctx, pdfPath, n.dpi, tmp)
	if err != nil {
		var rerr *RasterizationError
		if errors.As(err, &rerr) {
			return nil, err
		}
		return nil, &RasterizationError{Path: pdfPath, Err: err}
	}
	if len(pages) == 0 {
		return nil, &RasterizationError{Path: pdfPath, Err: errors.New("no pages rendered")}
	}

	results := make([]PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, src := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(outDir, fmt.Sprintf("%s_page_%02d.png", stem, i+1))
			results[i] = n.cleanPage(src, dst, i+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n.log.Info("normalized document", "path", pdfPath, "pages", len(results))
	return results, nil
}

func (n *Normalizer) cleanPage(src, dst string, index int) PageResult {
	res := PageResult{Index: index, Source: src}
	skew, err := n.clean(src, dst)
	if err != nil {
		n.log.Warn("page cleaning failed", "page", index, "source", src, "error", err)
		res.Err = err
		return res
	}
	res.Path = dst
	res.Skew = skew
	n.log.Debug("cleaned page", "page", index, "path", dst, "skew", skew)
	return res
}

// clean runs the per-page pipeline. All intermediate images are released
// before it returns, also on failure.
func (n *Normalizer) clean(src, dst string) (float64, error) {
	tk := n.toolkit

	var held []Image
	defer func() {
		for _, im := range held {
			im.Close()
		}
	}()

	img, err := tk.Load(src)
	if err != nil {
		return 0, &ImageLoadError{Path: src, Err: err}
	}
	held = append(held, img)

	gray, err := tk.Grayscale(img)
	if err != nil {
		return 0, &ImageOpError{Op: "grayscale", Path: src, Err: err}
	}
	held = append(held, gray)

	current, skew, err := n.deskew(gray, src, &held)
	if err != nil {
		return 0, err
	}

	stages := []struct {
		op string
		fn func(Image) (Image, error)
	}{
		{"denoise", tk.Denoise},
		{"binarize", tk.Binarize},
		{"morph_close", tk.MorphClose},
	}
	for _, s := range stages {
		next, err := s.fn(current)
		if err != nil {
			return 0, &ImageOpError{Op: s.op, Path: src, Err: err}
		}
		held = append(held, next)
		current = next
	}

	if err := tk.Save(dst, current); err != nil {
		os.Remove(dst)
		return 0, &ImageOpError{Op: "save", Path: dst, Err: err}
	}
	return skew, nil
}

// deskew levels gray when the detected skew exceeds the tolerance. It
// returns the upright image and the rotation applied.
func (n *Normalizer) deskew(gray Image, src string, held *[]Image) (Image, float64, error) {
	tk := n.toolkit

	edges, err := tk.Edges(gray)
	if err != nil {
		return nil, 0, &ImageOpError{Op: "edges", Path: src, Err: err}
	}
	*held = append(*held, edges)

	lines, err := tk.HoughLines(edges)
	if err != nil {
		return nil, 0, &ImageOpError{Op: "hough_lines", Path: src, Err: err}
	}

	angle, ok := EstimateSkew(lines)
	if !ok {
		return gray, 0, nil
	}

	rotated, err := tk.Rotate(gray, angle)
	if err != nil {
		return nil, 0, &ImageOpError{Op: "rotate", Path: src, Err: err}
	}
	*held = append(*held, rotated)
	return rotated, angle, nil
}
