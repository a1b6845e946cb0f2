package digitize

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // page image sizes
	_ "image/png"  // page image sizes
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gardar/labdigitize/pkg/hocr"
	"github.com/gardar/labdigitize/pkg/ocr"
	"github.com/gardar/labdigitize/pkg/preprocess"
)

// pageText is the recognized content of one clean page.
type pageText struct {
	index int
	path  string
	lines []ocr.Line
	hocr  hocr.Page
	err   error
}

// recognizePages runs recognition on every cleaned page with at most
// s.workers pages in flight. Results keep the order of pages.
func (s *Service) recognizePages(ctx context.Context, pages []preprocess.PageResult) []pageText {
	out := make([]pageText, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range pages {
		out[i] = pageText{index: p.Index, path: p.Path, err: p.Err}
		if p.Err != nil {
			continue
		}
		g.Go(func() error {
			out[i] = s.recognizePage(gctx, p)
			return nil
		})
	}
	g.Wait()
	return out
}

func (s *Service) recognizePage(ctx context.Context, p preprocess.PageResult) pageText {
	pt := pageText{index: p.Index, path: p.Path}
	if err := ctx.Err(); err != nil {
		pt.err = err
		return pt
	}

	tokens, err := s.recognizer.Recognize(ctx, p.Path)
	if err != nil {
		pt.err = err
		s.log.Warn("page recognition failed", "page", p.Index, "error", err)
		return pt
	}
	pt.lines = ocr.TokensToLines(ocr.Filter(tokens, s.minConfidence), s.lineThreshold)

	w, h := imageSize(p.Path)
	pt.hocr = hocr.PageFromLines(p.Index, filepath.Base(p.Path), w, h, pt.lines)
	if s.processedDir != "" {
		if err := s.dumpTokens(pt.hocr, p.Path); err != nil {
			s.log.Warn("token dump failed", "page", p.Index, "error", err)
		}
	}
	return pt
}

// dumpTokens writes the recognized page as hOCR next to the clean image, in
// the document's own output directory.
func (s *Service) dumpTokens(page hocr.Page, imagePath string) error {
	doc, err := hocr.GenerateHOCRDocument(hocr.NewDocument(s.recognizer.Name(), page))
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	path := filepath.Join(filepath.Dir(imagePath), fmt.Sprintf("tokens_%s.hocr", stem))
	return os.WriteFile(path, []byte(doc), 0o644)
}

// imageSize returns the pixel size of the image at path, or zeros when it
// cannot be decoded.
func imageSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
