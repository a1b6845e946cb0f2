package digitize

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gardar/labdigitize/pkg/hitl"
	"github.com/gardar/labdigitize/pkg/ocr"
	"github.com/gardar/labdigitize/pkg/preprocess"
)

type fakeNormalizer struct {
	pages []preprocess.PageResult
	err   error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, documentPath, outDir string) ([]preprocess.PageResult, error) {
	return f.pages, f.err
}

type fakeRecognizer struct {
	mu     sync.Mutex
	tokens map[string][]ocr.Token
	errs   map[string]error
	delay  map[string]time.Duration
	calls  []string
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, imagePath string) ([]ocr.Token, error) {
	f.mu.Lock()
	f.calls = append(f.calls, imagePath)
	d := f.delay[imagePath]
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if err := f.errs[imagePath]; err != nil {
		return nil, &ocr.RecognitionError{Engine: "fake", Path: imagePath, Err: err}
	}
	return f.tokens[imagePath], nil
}

type failingResults struct{ err error }

func (f failingResults) SaveResult(context.Context, string, []byte) error { return f.err }
func (f failingResults) CountResults(context.Context) (int, error)       { return 0, nil }

// lineTokens lays out words left to right on one line at top.
func lineTokens(top int, words ...string) []ocr.Token {
	tokens := make([]ocr.Token, len(words))
	left := 10
	for i, w := range words {
		tokens[i] = ocr.Token{
			Text:       w,
			BBox:       ocr.BBox{Left: left, Top: top, Width: 12 * len(w), Height: 20},
			Confidence: 90,
		}
		left += 12*len(w) + 10
	}
	return tokens
}

// writePage writes a blank PNG page and returns its path.
func writePage(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("report_page_%02d.png", n))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewGray(image.Rect(0, 0, 400, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

type fixture struct {
	svc     *Service
	norm    *fakeNormalizer
	rec     *fakeRecognizer
	results *FileResultStore
	outDir  string
	procDir string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		norm:    &fakeNormalizer{},
		rec:     &fakeRecognizer{tokens: map[string][]ocr.Token{}, errs: map[string]error{}, delay: map[string]time.Duration{}},
		outDir:  t.TempDir(),
		procDir: t.TempDir(),
	}
	f.results = NewFileResultStore(f.outDir)
	opts.ProcessedDir = f.procDir
	loop := hitl.NewLoop(hitl.NewFileStore(t.TempDir()), hitl.NewClassifier(), hitl.LoopOptions{})
	f.svc = New(Deps{
		Normalizer: f.norm,
		Recognizer: f.rec,
		Loop:       loop,
		Results:    f.results,
	}, opts)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return f
}

func (f *fixture) addPage(t *testing.T, tokens ...[]ocr.Token) string {
	t.Helper()
	n := len(f.norm.pages) + 1
	path := writePage(t, f.procDir, n)
	var all []ocr.Token
	for _, line := range tokens {
		all = append(all, line...)
	}
	f.rec.tokens[path] = all
	f.norm.pages = append(f.norm.pages, preprocess.PageResult{Index: n, Source: path, Path: path})
	return path
}
