package preprocess

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEstimateSkew(t *testing.T) {
	tests := []struct {
		name   string
		lines  []PolarLine
		want   float64
		wantOK bool
	}{
		{name: "no lines", lines: nil, want: 0, wantOK: false},
		{
			name:  "only vertical lines",
			lines: []PolarLine{{Theta: 0}, {Theta: deg(179)}, {Theta: deg(45)}},
			want:  0, wantOK: false,
		},
		{
			name:  "already level",
			lines: []PolarLine{{Theta: deg(90.3)}, {Theta: deg(89.8)}, {Theta: deg(90.4)}},
			want:  0.3, wantOK: false,
		},
		{
			name:  "median ignores border outlier",
			lines: []PolarLine{{Theta: deg(93)}, {Theta: deg(93)}, {Theta: deg(125)}, {Theta: deg(92)}, {Theta: deg(0)}},
			want:  3, wantOK: true,
		},
		{
			name:  "even count averages middle pair",
			lines: []PolarLine{{Theta: deg(86)}, {Theta: deg(88)}},
			want:  -3, wantOK: true,
		},
		{
			name: "only the first ten lines vote",
			lines: []PolarLine{
				{Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)},
				{Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)}, {Theta: deg(92)},
				{Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)},
				{Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)}, {Theta: deg(60)},
				{Theta: deg(60)},
			},
			want: 2, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateSkew(tt.lines)
			if ok != tt.wantOK {
				t.Fatalf("EstimateSkew() ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("EstimateSkew() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeUnsupportedFormat(t *testing.T) {
	n := NewNormalizer(&fakeToolkit{}, nil, Options{})
	_, err := n.Normalize(context.Background(), "report.docx", t.TempDir())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "docx") {
		t.Fatalf("error should name the extension: %v", err)
	}
}

func TestNormalizeImageDeskews(t *testing.T) {
	tk := &fakeToolkit{lines: []PolarLine{{Theta: deg(95)}, {Theta: deg(95)}, {Theta: deg(94)}}}
	out := t.TempDir()
	n := NewNormalizer(tk, nil, Options{})

	pages, err := n.Normalize(context.Background(), "/scans/Report.JPG", out)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	page := pages[0]
	if page.Err != nil {
		t.Fatalf("page error = %v", page.Err)
	}
	if filepath.Base(page.Path) != "Report_cleaned.png" {
		t.Fatalf("Path = %q, want Report_cleaned.png", page.Path)
	}
	if dir := filepath.Dir(page.Path); filepath.Dir(dir) != out || !strings.HasPrefix(filepath.Base(dir), "Report-") {
		t.Fatalf("page written to %q, want a Report-* directory under %q", dir, out)
	}
	if math.Abs(page.Skew-5) > 1e-9 {
		t.Fatalf("Skew = %v, want 5", page.Skew)
	}

	want := "load,grayscale,edges,hough_lines,rotate,denoise,binarize,morph_close,save"
	if got := joinOps(tk.ops); got != want {
		t.Fatalf("ops = %s\nwant  %s", got, want)
	}
	if len(tk.rotated) != 1 || math.Abs(tk.rotated[0]-5) > 1e-9 {
		t.Fatalf("rotated by %v, want [5]", tk.rotated)
	}
	if !tk.allClosed() {
		t.Fatal("intermediate images were not released")
	}
}

func TestNormalizeLevelPageSkipsRotation(t *testing.T) {
	tk := &fakeToolkit{lines: []PolarLine{{Theta: deg(90.2)}}}
	n := NewNormalizer(tk, nil, Options{})

	pages, err := n.Normalize(context.Background(), "scan.png", t.TempDir())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if pages[0].Skew != 0 || len(tk.rotated) != 0 {
		t.Fatalf("level page was rotated: skew=%v rotations=%v", pages[0].Skew, tk.rotated)
	}
}

func TestNormalizePDFIsolatesPageFailures(t *testing.T) {
	tk := &fakeToolkit{failLoad: map[string]bool{"page-2.png": true}}
	r := &fakeRasterizer{pages: 3}
	out := t.TempDir()
	n := NewNormalizer(tk, r, Options{Workers: 3})

	pages, err := n.Normalize(context.Background(), "lab.pdf", out)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Index != i+1 {
			t.Fatalf("page %d has index %d", i, p.Index)
		}
	}

	var loadErr *ImageLoadError
	if !errors.As(pages[1].Err, &loadErr) {
		t.Fatalf("page 2 error = %v, want ImageLoadError", pages[1].Err)
	}
	for _, i := range []int{0, 2} {
		if pages[i].Err != nil {
			t.Fatalf("page %d failed: %v", i+1, pages[i].Err)
		}
		if _, err := os.Stat(pages[i].Path); err != nil {
			t.Fatalf("cleaned page missing: %v", err)
		}
	}
	if filepath.Base(pages[2].Path) != "lab_page_03.png" {
		t.Fatalf("unexpected page name %q", pages[2].Path)
	}

	if _, err := os.Stat(r.dir); !os.IsNotExist(err) {
		t.Fatalf("raster directory %s was not removed", r.dir)
	}
}

func TestNormalizePDFRasterizationFailure(t *testing.T) {
	n := NewNormalizer(&fakeToolkit{}, &fakeRasterizer{err: errors.New("syntax error in xref")}, Options{})

	_, err := n.Normalize(context.Background(), "broken.pdf", t.TempDir())
	var rerr *RasterizationError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RasterizationError, got %v", err)
	}
	if rerr.Path != "broken.pdf" {
		t.Fatalf("Path = %q", rerr.Path)
	}

	n = NewNormalizer(&fakeToolkit{}, &fakeRasterizer{pages: 0}, Options{})
	out := t.TempDir()
	if _, err := n.Normalize(context.Background(), "empty.pdf", out); !errors.As(err, &rerr) {
		t.Fatalf("expected RasterizationError for empty render, got %v", err)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Fatalf("failed document left %d entries behind", len(entries))
	}
}

func TestNormalizeSameNameDocumentsDoNotCollide(t *testing.T) {
	tk := &fakeToolkit{}
	out := t.TempDir()
	n := NewNormalizer(tk, nil, Options{})

	first, err := n.Normalize(context.Background(), "/ward-a/report.png", out)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if err := os.WriteFile(first[0].Path, []byte("ward a"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := n.Normalize(context.Background(), "/ward-b/report.png", out)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if first[0].Path == second[0].Path {
		t.Fatalf("both documents cleaned to %s", first[0].Path)
	}
	if filepath.Dir(first[0].Path) == filepath.Dir(second[0].Path) {
		t.Fatalf("both documents share %s", filepath.Dir(first[0].Path))
	}
	data, err := os.ReadFile(first[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ward a" {
		t.Fatalf("first document's page was overwritten: %q", data)
	}
}

func TestNormalizeReleasesImagesOnFailure(t *testing.T) {
	tk := &fakeToolkit{failOp: "binarize"}
	out := t.TempDir()
	n := NewNormalizer(tk, nil, Options{})

	pages, err := n.Normalize(context.Background(), "scan.png", out)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	var opErr *ImageOpError
	if !errors.As(pages[0].Err, &opErr) || opErr.Op != "binarize" {
		t.Fatalf("expected binarize ImageOpError, got %v", pages[0].Err)
	}
	if !tk.allClosed() {
		t.Fatal("intermediate images were not released after failure")
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("failed page left files behind: %v", entries)
	}
}

func TestNormalizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewNormalizer(&fakeToolkit{}, &fakeRasterizer{pages: 2}, Options{})
	if _, err := n.Normalize(ctx, "lab.pdf", t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
