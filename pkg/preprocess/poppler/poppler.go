// Package poppler rasterizes PDF pages with poppler's pdftoppm.
package poppler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/gardar/labdigitize/pkg/preprocess"
)

// DefaultBinary is the pdftoppm executable looked up on PATH.
const DefaultBinary = "pdftoppm"

var pageFile = regexp.MustCompile(`-(\d+)\.png$`)

// Rasterizer implements preprocess.Rasterizer.
type Rasterizer struct {
	binary string
	log    *slog.Logger
}

// New returns a Rasterizer running binary (DefaultBinary when empty).
func New(binary string, logger *slog.Logger) *Rasterizer {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{binary: binary, log: logger}
}

// Available reports whether the pdftoppm binary can be found.
func (r *Rasterizer) Available() error {
	_, err := exec.LookPath(r.binary)
	return err
}

// Render validates the PDF, renders every page at dpi into outDir and
// returns the PNG paths in page order.
func (r *Rasterizer) Render(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error) {
	pages, err := PageCount(pdfPath)
	if err != nil {
		return nil, &preprocess.RasterizationError{Path: pdfPath, Err: err}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary,
		"-r", strconv.Itoa(dpi),
		"-png",
		pdfPath,
		filepath.Join(outDir, "page"),
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &preprocess.RasterizationError{Path: pdfPath, Err: err}
	}

	paths, err := renderedPages(outDir)
	if err != nil {
		return nil, &preprocess.RasterizationError{Path: pdfPath, Err: err}
	}
	if len(paths) != pages {
		r.log.Warn("page count mismatch", "path", pdfPath, "expected", pages, "rendered", len(paths))
	}
	r.log.Debug("rasterized pdf", "path", pdfPath, "pages", len(paths), "dpi", dpi)
	return paths, nil
}

// PageCount opens the PDF and returns its number of pages. Malformed files
// are reported as errors, including those that make the parser panic.
func PageCount(path string) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	n = r.NumPage()
	if n == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}

// renderedPages lists pdftoppm output sorted by page number. pdftoppm pads
// the number to the width of the page count, so lexical order is not enough.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}

	type page struct {
		num  int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		sub := pageFile.FindStringSubmatch(m)
		if len(sub) < 2 {
			continue
		}
		num, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		pages = append(pages, page{num: num, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}
