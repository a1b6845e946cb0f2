package gdocai

import (
	"reflect"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/labdigitize/pkg/ocr"
)

func layout(start, end int64, conf float32, verts ...float32) *documentaipb.Document_Page_Layout {
	l := &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
		},
		Confidence:   conf,
		BoundingPoly: &documentaipb.BoundingPoly{},
	}
	for i := 0; i+1 < len(verts); i += 2 {
		l.BoundingPoly.NormalizedVertices = append(l.BoundingPoly.NormalizedVertices,
			&documentaipb.NormalizedVertex{X: verts[i], Y: verts[i+1]})
	}
	return l
}

func TestPageTokens(t *testing.T) {
	text := "Hemoglobin 13.5\n"
	page := &documentaipb.Document_Page{
		Dimension: &documentaipb.Document_Page_Dimension{Width: 1000, Height: 2000},
		Tokens: []*documentaipb.Document_Page_Token{
			{Layout: layout(0, 11, 0.97, 0.1, 0.1, 0.3, 0.1, 0.3, 0.11, 0.1, 0.11)},
			{Layout: layout(11, 16, 0.5, 0.4, 0.1, 0.45, 0.1, 0.45, 0.11, 0.4, 0.11)},
			// no geometry
			{Layout: &documentaipb.Document_Page_Layout{
				TextAnchor: &documentaipb.Document_TextAnchor{
					TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: 0, EndIndex: 4}},
				},
			}},
		},
	}

	got := PageTokens(page, text)
	want := []ocr.Token{
		{Text: "Hemoglobin", BBox: ocr.BBox{Left: 100, Top: 200, Width: 200, Height: 20}, Confidence: 97},
		{Text: "13.5", BBox: ocr.BBox{Left: 400, Top: 200, Width: 50, Height: 20}, Confidence: 50},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PageTokens() = %+v\nwant %+v", got, want)
	}
}

func TestTextFromLayoutClampsSegments(t *testing.T) {
	l := layout(2, 99, 1)
	if got := textFromLayout(l, "µg/dL value"); got != "/dL value" {
		t.Fatalf("textFromLayout() = %q", got)
	}
	if got := textFromLayout(nil, "abc"); got != "" {
		t.Fatalf("textFromLayout(nil) = %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	err := (&Config{Location: "eu"}).Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"project_id", "processor_id"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}

	cfg := &Config{ProjectID: "p", Location: "eu", ProcessorID: "x"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.ProcessorName() != "projects/p/locations/eu/processors/x" {
		t.Fatalf("ProcessorName() = %q", cfg.ProcessorName())
	}
}

func TestMimeTypeFor(t *testing.T) {
	cases := map[string]string{
		"page_01.png": "image/png",
		"scan.JPG":    "image/jpeg",
		"scan.tiff":   "image/tiff",
		"report.pdf":  "application/pdf",
	}
	for in, want := range cases {
		if got := mimeTypeFor(in); got != want {
			t.Errorf("mimeTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}
