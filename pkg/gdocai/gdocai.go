// Package gdocai recognizes page images with Google Document AI.
//
// The engine sends each cleaned page image to an OCR processor and converts
// the returned tokens into pixel-space word boxes, the same shape a local
// Tesseract run produces. This lets the rest of the pipeline stay unaware of
// which backend recognized the page.
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via a credentials file or GOOGLE_APPLICATION_CREDENTIALS
package gdocai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/proto"

	"github.com/gardar/labdigitize/pkg/ocr"
)

// Engine implements ocr.Recognizer on top of a Document AI processor.
type Engine struct {
	cfg    *Config
	client *documentai.DocumentProcessorClient
	log    *slog.Logger
}

// NewEngine dials Document AI for the processor named by cfg. A nil logger
// selects slog.Default.
func NewEngine(ctx context.Context, cfg *Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, client: client, log: log}, nil
}

func (e *Engine) Name() string { return "documentai" }

// Close releases the underlying gRPC connection.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Recognize sends the image at imagePath to Document AI and returns the
// tokens of the first page in the response.
func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]ocr.Token, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, &ocr.RecognitionError{Engine: e.Name(), Path: imagePath, Err: err}
	}

	doc, err := ProcessDocument(ctx, e.client, content, mimeTypeFor(imagePath), e.cfg)
	if err != nil {
		return nil, &ocr.RecognitionError{Engine: e.Name(), Path: imagePath, Err: err}
	}
	return e.tokens(imagePath, doc), nil
}

// tokens dumps the response when configured and converts its first page.
// A failed dump is logged; the page is still recognized.
func (e *Engine) tokens(imagePath string, doc *documentaipb.Document) []ocr.Token {
	if e.cfg.DumpDir != "" {
		if err := dumpResponse(e.cfg.DumpDir, imagePath, doc); err != nil {
			e.log.Warn("document ai response dump failed", "path", imagePath, "error", err)
		}
	}
	if len(doc.Pages) == 0 {
		return nil
	}
	return PageTokens(doc.Pages[0], doc.Text)
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	default:
		return "image/png"
	}
}

func dumpResponse(dir, imagePath string, doc proto.Message) error {
	data, err := ToJSON(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document ai response: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)) + ".docai.json"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644)
}
