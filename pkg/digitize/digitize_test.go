package digitize

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gardar/labdigitize/pkg/hitl"
	"github.com/gardar/labdigitize/pkg/ocr"
	"github.com/gardar/labdigitize/pkg/preprocess"
)

func TestDigitize(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPage(t,
		lineTokens(20, "Patient", "Name:", "Jane", "Smith"),
		lineTokens(60, "Age:", "45", "yrs"),
	)
	f.addPage(t,
		lineTokens(20, "Hemoglobin", "13.5", "g/dL"),
		lineTokens(60, "low", "conf"),
	)
	// Dropped by the confidence floor.
	f.rec.tokens[f.norm.pages[1].Path][4].Confidence = 30

	res, err := f.svc.Digitize(context.Background(), "/uploads/report.pdf")
	if err != nil {
		t.Fatalf("Digitize() error = %v", err)
	}

	if res.Patient.Name != "Jane Smith" || res.Patient.Age == nil || *res.Patient.Age != 45 {
		t.Fatalf("unexpected patient %+v", res.Patient)
	}
	if len(res.Tests) != 1 || res.Tests[0].Name != "Hemoglobin 13.5 g/dL" || res.Tests[0].Value != 13.5 {
		t.Fatalf("unexpected tests %+v", res.Tests)
	}
	want := map[string]float64{"name": 0.36, "age": 0.36}
	if !reflect.DeepEqual(res.ConfidenceScores.Patient, want) {
		t.Fatalf("scores = %v, want %v", res.ConfidenceScores.Patient, want)
	}
	if !reflect.DeepEqual(res.NeedsReview, []string{"patient.name", "patient.age"}) {
		t.Fatalf("needs review = %v", res.NeedsReview)
	}

	md := res.Metadata
	if md.PageCount != 2 || md.TokenCount != 11 || md.OriginalFilename != "report.pdf" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if md.Timestamp != "2024-03-01T09:30:00Z" {
		t.Fatalf("timestamp = %s", md.Timestamp)
	}
	if md.OutputFile != "result_20240301_093000_1.json" {
		t.Fatalf("output file = %s", md.OutputFile)
	}

	data, err := os.ReadFile(filepath.Join(f.outDir, md.OutputFile))
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	var stored Result
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.Metadata.OutputFile != md.OutputFile || stored.Patient.Name != "Jane Smith" {
		t.Fatalf("stored result differs: %+v", stored)
	}

	for _, name := range []string{"tokens_report_page_01.hocr", "tokens_report_page_02.hocr"} {
		dump, err := os.ReadFile(filepath.Join(f.procDir, name))
		if err != nil {
			t.Fatalf("token dump %s missing: %v", name, err)
		}
		if !strings.Contains(string(dump), "bbox 0 0 400 200") {
			t.Fatalf("token dump %s lacks the page box", name)
		}
	}
}

func TestDigitizeKeepsPageOrder(t *testing.T) {
	f := newFixture(t, Options{Workers: 4})
	first := f.addPage(t, lineTokens(20, "Glucose", "98", "mg/dL"))
	f.addPage(t, lineTokens(20, "Sodium", "140", "mmol/L"))
	f.addPage(t, lineTokens(20, "HbA1c", "5.6", "%"))
	f.rec.delay[first] = 50 * time.Millisecond

	res, err := f.svc.Digitize(context.Background(), "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, o := range res.Tests {
		names = append(names, strings.Fields(o.Name)[0])
	}
	if !reflect.DeepEqual(names, []string{"Glucose", "Sodium", "HbA1c"}) {
		t.Fatalf("tests out of page order: %v", names)
	}
}

func TestDigitizeSkipsFailedPages(t *testing.T) {
	f := newFixture(t, Options{Workers: 2})
	bad := f.addPage(t, lineTokens(20, "Glucose", "98"))
	f.addPage(t, lineTokens(20, "Sodium", "140"))
	f.rec.errs[bad] = errors.New("engine crashed")
	f.norm.pages = append(f.norm.pages, preprocess.PageResult{
		Index: 3,
		Err:   &preprocess.ImageLoadError{Path: "page_03.png", Err: os.ErrNotExist},
	})

	res, err := f.svc.Digitize(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("Digitize() error = %v", err)
	}
	if res.Metadata.PageCount != 1 || len(res.Tests) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	failed := res.Metadata.FailedPages
	if len(failed) != 2 || failed[0].Page != 1 || failed[0].Stage != "recognize" || failed[1].Page != 3 || failed[1].Stage != "normalize" {
		t.Fatalf("failed pages = %+v", failed)
	}
}

func TestDigitizeNoPages(t *testing.T) {
	f := newFixture(t, Options{})
	bad := f.addPage(t, lineTokens(20, "x"))
	f.rec.errs[bad] = errors.New("engine crashed")

	_, err := f.svc.Digitize(context.Background(), "report.png")
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
	var rerr *ocr.RecognitionError
	if !errors.As(err, &rerr) {
		t.Fatalf("page error not carried: %v", err)
	}
	if n, _ := f.results.CountResults(context.Background()); n != 0 {
		t.Fatal("result stored for a failed document")
	}
}

func TestDigitizeDocumentError(t *testing.T) {
	f := newFixture(t, Options{})
	f.norm.err = preprocess.ErrUnsupportedFormat

	_, err := f.svc.Digitize(context.Background(), "report.docx")
	if !errors.Is(err, preprocess.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(f.rec.calls) != 0 {
		t.Fatal("recognizer called for a rejected document")
	}
}

func TestDigitizeFailsWhenResultNotStored(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPage(t, lineTokens(20, "Glucose", "98"))
	perr := &hitl.PersistenceError{Op: "save result", Path: "x", Err: os.ErrPermission}
	f.svc.results = failingResults{err: perr}

	res, err := f.svc.Digitize(context.Background(), "report.png")
	var got *hitl.PersistenceError
	if !errors.As(err, &got) || res != nil {
		t.Fatalf("expected PersistenceError and no result, got %v, %v", res, err)
	}
}

func TestDigitizeNamesResultsSequentially(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPage(t, lineTokens(20, "Glucose", "98"))

	for i, want := range []string{"result_20240301_093000_1.json", "result_20240301_093000_2.json"} {
		res, err := f.svc.Digitize(context.Background(), "report.png")
		if err != nil {
			t.Fatal(err)
		}
		if res.Metadata.OutputFile != want {
			t.Fatalf("run %d: output file = %s, want %s", i, res.Metadata.OutputFile, want)
		}
	}
}

func TestDigitizeWritesArchive(t *testing.T) {
	archiveDir := t.TempDir()
	f := newFixture(t, Options{ArchiveDir: archiveDir})
	f.addPage(t, lineTokens(20, "Hemoglobin", "13.5", "g/dL"))

	res, err := f.svc.Digitize(context.Background(), "report.png")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(archiveDir, "result_20240301_093000_1.pdf")
	if res.Metadata.ArchiveFile != want {
		t.Fatalf("archive file = %q, want %q", res.Metadata.ArchiveFile, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatalf("archive not a PDF: %v", err)
	}
}

func TestCorrectionsAffectLaterResults(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPage(t, lineTokens(20, "Patient", "Name:", "Jane", "Smith"))
	ctx := context.Background()

	before, err := f.svc.Digitize(ctx, "report.png")
	if err != nil {
		t.Fatal(err)
	}

	corrected := map[string]any{"patient": map[string]any{"name": "Jane Smith"}}
	var last hitl.SubmitResult
	for i := 0; i < hitl.DefaultMinCorpus; i++ {
		last, err = f.svc.SubmitCorrection(ctx, map[string]any{}, corrected, "")
		if err != nil {
			t.Fatal(err)
		}
	}
	if !last.Retrained || last.CorrectionID != "corr_0005" {
		t.Fatalf("unexpected submit result %+v", last)
	}

	after, err := f.svc.Digitize(ctx, "report.png")
	if err != nil {
		t.Fatal(err)
	}
	if got := after.ConfidenceScores.Patient["name"]; got != 0.76 {
		t.Fatalf("name score after training = %v, want 0.76", got)
	}
	if len(after.NeedsReview) != 0 {
		t.Fatalf("needs review = %v", after.NeedsReview)
	}
	if got := before.ConfidenceScores.Patient["name"]; got != 0.36 {
		t.Fatalf("earlier result changed: %v", got)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{TotalCorrections: 5, TotalProcessedReports: 2, ClassifierTrained: true, AvailableFieldClassifiers: []string{"name"}}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestTokenDumpsStayWithTheirDocument(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var dirs []string
	for _, name := range []string{"Asha", "Ravi"} {
		dir := filepath.Join(f.procDir, "report-"+strings.ToLower(name))
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		path := writePage(t, dir, 1)
		f.rec.tokens[path] = lineTokens(20, "Patient", "Name:", name)
		f.norm.pages = []preprocess.PageResult{{Index: 1, Source: path, Path: path}}
		if _, err := f.svc.Digitize(ctx, "/uploads/"+strings.ToLower(name)+"/report.pdf"); err != nil {
			t.Fatalf("Digitize() error = %v", err)
		}
		dirs = append(dirs, dir)
	}

	for i, name := range []string{"Asha", "Ravi"} {
		dump, err := os.ReadFile(filepath.Join(dirs[i], "tokens_report_page_01.hocr"))
		if err != nil {
			t.Fatalf("token dump for %s missing: %v", name, err)
		}
		if !strings.Contains(string(dump), name) {
			t.Fatalf("token dump in %s does not hold %s", dirs[i], name)
		}
	}
	if _, err := os.Stat(filepath.Join(f.procDir, "tokens_report_page_01.hocr")); !os.IsNotExist(err) {
		t.Fatal("token dump written to the shared processed directory")
	}
}
