package digitize

import (
	"context"
	"errors"

	"github.com/gardar/labdigitize/pkg/extract"
	"github.com/gardar/labdigitize/pkg/hitl"
	"github.com/gardar/labdigitize/pkg/preprocess"
)

// ErrNoPages is returned when not a single page of a document could be
// cleaned and recognized.
var ErrNoPages = errors.New("no page of the document could be processed")

// Normalizer produces clean page images for a document.
type Normalizer interface {
	Normalize(ctx context.Context, documentPath, outDir string) ([]preprocess.PageResult, error)
}

// ResultStore persists rendered results. SaveResult must fail rather than
// replace an existing result.
type ResultStore interface {
	SaveResult(ctx context.Context, name string, data []byte) error
	CountResults(ctx context.Context) (int, error)
}

// Result is the structured output of one digitization.
type Result struct {
	Patient          extract.Patient       `json:"patient"`
	Tests            []extract.Observation `json:"tests"`
	ConfidenceScores hitl.Scores           `json:"confidence_scores"`
	NeedsReview      []string              `json:"needs_review"`
	Metadata         Metadata              `json:"metadata"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	PageCount        int           `json:"page_count"`
	TokenCount       int           `json:"token_count"`
	Timestamp        string        `json:"timestamp"`
	OriginalFilename string        `json:"original_filename"`
	FailedPages      []PageFailure `json:"failed_pages,omitempty"`
	OutputFile       string        `json:"output_file,omitempty"`
	ArchiveFile      string        `json:"archive_file,omitempty"`
}

// PageFailure records a page skipped during digitization.
type PageFailure struct {
	Page  int    `json:"page"`
	Stage string `json:"stage"` // "normalize" or "recognize"
	Error string `json:"error"`
}

// Stats summarizes the stored corpus and results.
type Stats struct {
	TotalCorrections          int      `json:"total_corrections"`
	TotalProcessedReports     int      `json:"total_processed_reports"`
	ClassifierTrained         bool     `json:"classifier_trained"`
	AvailableFieldClassifiers []string `json:"available_field_classifiers"`
}
