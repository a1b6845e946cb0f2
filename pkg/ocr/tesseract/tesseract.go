// Package tesseract recognizes word tokens with a local Tesseract install
// through gosseract. Recognition output is requested as hOCR and parsed
// with the hocr package so that word boxes and confidences survive.
package tesseract

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/gardar/labdigitize/pkg/hocr"
	"github.com/gardar/labdigitize/pkg/ocr"
)

// Options configures the Tesseract engine.
type Options struct {
	Languages   []string          // e.g. ["eng"]
	PageSegMode int               // Tesseract PSM, 6 = single uniform block
	DPI         int               // forwarded as user_defined_dpi when > 0
	Variables   map[string]string // extra Tesseract variables
}

// Engine implements ocr.Recognizer using Tesseract.
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// NewEngine checks that the requested languages are installed and returns a
// ready engine.
func NewEngine(opts Options) (*Engine, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	if opts.PageSegMode == 0 {
		opts.PageSegMode = int(gosseract.PSM_SINGLE_BLOCK)
	}

	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("failed to list tesseract languages: %w", err)
	}
	for _, lang := range opts.Languages {
		if !slices.Contains(available, lang) {
			return nil, fmt.Errorf("tesseract language %q is not installed (available: %v)", lang, available)
		}
	}
	return &Engine{opts: opts, clientFactory: gosseract.NewClient}, nil
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on the image at imagePath and returns its words
// in reading order as reported by the engine.
func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]ocr.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := e.RecognizePage(imagePath)
	if err != nil {
		return nil, &ocr.RecognitionError{Engine: e.Name(), Path: imagePath, Err: err}
	}
	return page.Tokens(), nil
}

// RecognizePage returns the first hOCR page Tesseract produced for the image.
func (e *Engine) RecognizePage(imagePath string) (hocr.Page, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c); err != nil {
		return hocr.Page{}, err
	}
	if err := c.SetImage(imagePath); err != nil {
		return hocr.Page{}, fmt.Errorf("set image: %w", err)
	}
	out, err := c.HOCRText()
	if err != nil {
		return hocr.Page{}, fmt.Errorf("recognize hocr: %w", err)
	}
	doc, err := hocr.ParseHOCR([]byte(out))
	if err != nil {
		return hocr.Page{}, err
	}
	return doc.Pages[0], nil
}

func (e *Engine) configure(c *gosseract.Client) error {
	if err := c.SetLanguage(e.opts.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if e.opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.opts.DPI)); err != nil {
			return fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range e.opts.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return nil
}
