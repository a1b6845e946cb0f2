package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gardar/labdigitize/internal/config"
	"github.com/gardar/labdigitize/pkg/digitize"
	"github.com/gardar/labdigitize/pkg/extract"
	"github.com/gardar/labdigitize/pkg/gdocai"
	"github.com/gardar/labdigitize/pkg/hitl"
	"github.com/gardar/labdigitize/pkg/hitl/pgstore"
	"github.com/gardar/labdigitize/pkg/ocr"
	"github.com/gardar/labdigitize/pkg/ocr/tesseract"
	"github.com/gardar/labdigitize/pkg/preprocess"
	"github.com/gardar/labdigitize/pkg/preprocess/cvkit"
	"github.com/gardar/labdigitize/pkg/preprocess/imagekit"
	"github.com/gardar/labdigitize/pkg/preprocess/poppler"
)

// app holds the wired service and the resources to release on exit.
type app struct {
	service *digitize.Service
	log     *slog.Logger
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, configPath string, verbose bool) (_ *app, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(verbose, cfg.LogLevel)
	slog.SetDefault(logger)

	a := &app{log: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	for _, dir := range cfg.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	toolkit, err := newToolkit(cfg)
	if err != nil {
		return nil, err
	}
	rasterizer := poppler.New(cfg.Preprocess.Pdftoppm, logger)
	if err := rasterizer.Available(); err != nil {
		logger.Warn("PDF input will fail", "error", err)
	}
	normalizer := preprocess.NewNormalizer(toolkit, rasterizer, preprocess.Options{
		DPI:     cfg.DPI,
		Workers: cfg.Workers,
		Logger:  logger,
	})

	recognizer, err := a.newRecognizer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	corrections, results, err := a.newStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	classifier := hitl.NewClassifier()
	if err := classifier.Load(cfg.ModelPath()); err != nil {
		return nil, err
	}
	logger.Debug("classifier loaded", "trained", classifier.Trained(), "fields", classifier.KnownFields())

	loop := hitl.NewLoop(corrections, classifier, hitl.LoopOptions{
		ModelPath: cfg.ModelPath(),
		MinCorpus: cfg.RetrainMinimum,
		Logger:    logger,
	})

	opts := digitize.Options{
		ProcessedDir:    cfg.ProcessedDir,
		ArchiveDPI:      cfg.DPI,
		LineThreshold:   cfg.LineThreshold,
		MinConfidence:   cfg.MinConfidence,
		ReviewThreshold: cfg.ReviewThreshold,
		Workers:         cfg.Workers,
		Logger:          logger,
	}
	if cfg.ArchivePDF {
		opts.ArchiveDir = cfg.OutputsDir
	}
	a.service = digitize.New(digitize.Deps{
		Normalizer: normalizer,
		Recognizer: recognizer,
		Extractor:  extract.New(extract.Options{HeaderLines: cfg.HeaderLines}),
		Loop:       loop,
		Results:    results,
	}, opts)
	return a, nil
}

func newToolkit(cfg *config.Config) (preprocess.Toolkit, error) {
	switch cfg.Preprocess.Toolkit {
	case config.ToolkitOpenCV:
		tk, err := cvkit.New(cvkit.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenCV toolkit: %w", err)
		}
		return tk, nil
	default:
		return imagekit.New(imagekit.Options{}), nil
	}
}

// newRecognizer starts the configured engine. An unavailable engine is
// fatal at startup.
func (a *app) newRecognizer(ctx context.Context, cfg *config.Config) (ocr.Recognizer, error) {
	switch cfg.OCR.Engine {
	case config.EngineDocumentAI:
		engine, err := gdocai.NewEngine(ctx, &cfg.OCR.DocumentAI, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to start Document AI engine: %w", err)
		}
		a.closers = append(a.closers, engine.Close)
		return engine, nil
	default:
		engine, err := tesseract.NewEngine(tesseract.Options{
			Languages:   cfg.OCR.Languages,
			PageSegMode: cfg.OCR.PageSegMode,
			DPI:         cfg.DPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start tesseract engine: %w", err)
		}
		return engine, nil
	}
}

func (a *app) newStores(ctx context.Context, cfg *config.Config) (hitl.CorrectionStore, digitize.ResultStore, error) {
	if cfg.DatabaseURL == "" {
		return hitl.NewFileStore(cfg.CorrectionsDir), digitize.NewFileResultStore(cfg.OutputsDir), nil
	}
	store, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, store, nil
}
