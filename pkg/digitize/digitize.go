// Package digitize runs the lab report pipeline end to end: page
// normalization, text recognition, line reconstruction, field extraction
// and confidence blending, and it owns the correction feedback loop.
package digitize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gardar/labdigitize/pkg/extract"
	"github.com/gardar/labdigitize/pkg/hitl"
	"github.com/gardar/labdigitize/pkg/hocr"
	"github.com/gardar/labdigitize/pkg/ocr"
	"github.com/gardar/labdigitize/pkg/pdfocr"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Normalizer Normalizer
	Recognizer ocr.Recognizer
	Extractor  *extract.Extractor // extract.New with defaults when nil
	Loop       *hitl.Loop
	Results    ResultStore
}

// Options tunes a Service.
type Options struct {
	ProcessedDir    string  // clean images and token dumps
	ArchiveDir      string  // searchable PDFs; archiving is off when empty
	ArchiveDPI      int     // resolution of the clean images, for archive page size
	LineThreshold   int     // ocr.DefaultLineThreshold when zero
	MinConfidence   int     // ocr.DefaultMinConfidence when zero
	ReviewThreshold float64 // hitl.ReviewThreshold when zero
	Workers         int     // pages recognized concurrently, 1 when zero
	Logger          *slog.Logger
}

// Service is the entry point used by the CLI and by any request layer.
type Service struct {
	normalizer Normalizer
	recognizer ocr.Recognizer
	extractor  *extract.Extractor
	blender    *hitl.Blender
	loop       *hitl.Loop
	results    ResultStore

	processedDir  string
	archiveDir    string
	archiveDPI    int
	lineThreshold int
	minConfidence int
	workers       int
	log           *slog.Logger

	now func() time.Time

	// resultMu serializes result naming with the write that claims the name.
	resultMu sync.Mutex
}

// New wires a Service.
func New(deps Deps, opts Options) *Service {
	s := &Service{
		normalizer:    deps.Normalizer,
		recognizer:    deps.Recognizer,
		extractor:     deps.Extractor,
		blender:       hitl.NewBlender(deps.Loop.Classifier(), opts.ReviewThreshold),
		loop:          deps.Loop,
		results:       deps.Results,
		processedDir:  opts.ProcessedDir,
		archiveDir:    opts.ArchiveDir,
		archiveDPI:    opts.ArchiveDPI,
		lineThreshold: opts.LineThreshold,
		minConfidence: opts.MinConfidence,
		workers:       opts.Workers,
		log:           opts.Logger,
		now:           time.Now,
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.Options{})
	}
	if s.lineThreshold <= 0 {
		s.lineThreshold = ocr.DefaultLineThreshold
	}
	if s.minConfidence <= 0 {
		s.minConfidence = ocr.DefaultMinConfidence
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Digitize processes the document at path and persists the result. Pages
// that fail are listed in the metadata; the call fails only when no page
// succeeded or the result cannot be stored.
func (s *Service) Digitize(ctx context.Context, path string) (*Result, error) {
	started := s.now()
	log := s.log.With("document", filepath.Base(path))

	pages, err := s.normalizer.Normalize(ctx, path, s.processedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", filepath.Base(path), err)
	}

	var (
		failures []PageFailure
		pageErrs []error
		done     []pageText
		text     strings.Builder
		tokens   int
	)
	for _, pt := range s.recognizePages(ctx, pages) {
		if pt.err != nil {
			stage := "recognize"
			if pt.path == "" {
				stage = "normalize"
			}
			failures = append(failures, PageFailure{Page: pt.index, Stage: stage, Error: pt.err.Error()})
			pageErrs = append(pageErrs, pt.err)
			continue
		}
		done = append(done, pt)
		text.WriteString(ocr.Text(pt.lines))
		tokens += ocr.TokenCount(pt.lines)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(done) == 0 {
		if len(pageErrs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoPages, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrNoPages, filepath.Base(path), errors.Join(pageErrs...))
	}

	ex := s.extractor.Extract(text.String())
	scores, review := s.blender.Blend(ex.Patient)

	res := &Result{
		Patient:          ex.Patient,
		Tests:            ex.Tests,
		ConfidenceScores: scores,
		NeedsReview:      review,
		Metadata: Metadata{
			PageCount:        len(done),
			TokenCount:       tokens,
			Timestamp:        started.UTC().Format(time.RFC3339),
			OriginalFilename: filepath.Base(path),
			FailedPages:      failures,
		},
	}
	if res.Tests == nil {
		res.Tests = []extract.Observation{}
	}

	if err := s.saveResult(ctx, res, done, started); err != nil {
		return nil, err
	}
	log.Info("document digitized",
		"pages", res.Metadata.PageCount,
		"failed_pages", len(failures),
		"tokens", tokens,
		"tests", len(res.Tests),
		"needs_review", len(review),
		"output", res.Metadata.OutputFile,
	)
	return res, nil
}

// saveResult names and stores the result and, when enabled, writes the
// searchable archive under the same name.
func (s *Service) saveResult(ctx context.Context, res *Result, pages []pageText, started time.Time) error {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	n, err := s.results.CountResults(ctx)
	if err != nil {
		return err
	}
	stem := fmt.Sprintf("result_%s_%d", started.Format("20060102_150405"), n+1)
	res.Metadata.OutputFile = stem + ".json"

	if s.archiveDir != "" {
		archive := filepath.Join(s.archiveDir, stem+".pdf")
		if err := s.writeArchive(archive, pages); err != nil {
			s.log.Warn("archive not written", "path", archive, "error", err)
		} else {
			res.Metadata.ArchiveFile = archive
		}
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := s.results.SaveResult(ctx, res.Metadata.OutputFile, data); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *Service) writeArchive(path string, pages []pageText) error {
	hpages := make([]hocr.Page, len(pages))
	images := make([]string, len(pages))
	for i, p := range pages {
		hpages[i] = p.hocr
		images[i] = p.path
	}
	cfg := pdfocr.DefaultConfig()
	if s.archiveDPI > 0 {
		cfg.DPI = s.archiveDPI
	}
	cfg.Logger = s.log
	return pdfocr.WriteArchive(path, hocr.NewDocument(s.recognizer.Name(), hpages...), images, cfg)
}

// SubmitCorrection stores a reviewer correction and retrains the classifier
// once enough corrections exist. Later digitizations see the new classifier;
// earlier results are not revised.
func (s *Service) SubmitCorrection(ctx context.Context, original, corrected map[string]any, id string) (hitl.SubmitResult, error) {
	return s.loop.Submit(ctx, original, corrected, id)
}

// Retrain rebuilds the classifier from the current corpus regardless of
// its size.
func (s *Service) Retrain(ctx context.Context) (map[string]int, error) {
	return s.loop.Retrain(ctx)
}

func (s *Service) Status() hitl.Status {
	return s.loop.Status()
}

// Stats counts stored corrections and results.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	corrections, err := s.loop.CorpusSize(ctx)
	if err != nil {
		return Stats{}, err
	}
	reports, err := s.results.CountResults(ctx)
	if err != nil {
		return Stats{}, err
	}
	status := s.loop.Status()
	return Stats{
		TotalCorrections:          corrections,
		TotalProcessedReports:     reports,
		ClassifierTrained:         status.ClassifierTrained,
		AvailableFieldClassifiers: status.KnownFields,
	}, nil
}
