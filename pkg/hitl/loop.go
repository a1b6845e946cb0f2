// Package hitl implements the human-in-the-loop feedback cycle: blending
// rule confidence with a memorization classifier, storing reviewer
// corrections, and retraining the classifier from the correction corpus.
package hitl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMinCorpus is the corpus size from which every new correction
// triggers a retrain.
const DefaultMinCorpus = 5

// maxIDProbes bounds the search for a free sequential id.
const maxIDProbes = 1000

// LoopOptions configures a Loop.
type LoopOptions struct {
	ModelPath string       // classifier file; not persisted when empty
	MinCorpus int          // DefaultMinCorpus when zero
	Logger    *slog.Logger // slog.Default() when nil
}

// SubmitResult reports the outcome of a correction submission.
type SubmitResult struct {
	CorrectionID string         `json:"correction_id"`
	Retrained    bool           `json:"retrained"`
	Scores       map[string]int `json:"scores,omitempty"`
	Remaining    int            `json:"remaining,omitempty"`
}

// Status summarizes the classifier state.
type Status struct {
	ClassifierTrained bool     `json:"classifier_trained"`
	KnownFields       []string `json:"known_fields"`
}

// Loop owns the correction corpus and the classifier.
type Loop struct {
	store      CorrectionStore
	classifier *Classifier
	modelPath  string
	minCorpus  int
	log        *slog.Logger

	// saveMu serializes id allocation with the write that claims it.
	saveMu sync.Mutex
	// trainMu keeps snapshots from being swapped in out of order.
	trainMu sync.Mutex
}

// NewLoop wires a corpus store and classifier together.
func NewLoop(store CorrectionStore, c *Classifier, opts LoopOptions) *Loop {
	if opts.MinCorpus <= 0 {
		opts.MinCorpus = DefaultMinCorpus
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		store:      store,
		classifier: c,
		modelPath:  opts.ModelPath,
		minCorpus:  opts.MinCorpus,
		log:        opts.Logger,
	}
}

// Classifier returns the classifier the loop trains.
func (l *Loop) Classifier() *Classifier { return l.classifier }

// SaveCorrection stores a correction and returns its id. Without an id the
// next free "corr_NNNN" id is assigned; a caller-supplied id that already
// exists fails with ErrCorpusRace.
func (l *Loop) SaveCorrection(ctx context.Context, original, corrected map[string]any, id string) (string, error) {
	c := Correction{Original: original, Corrected: corrected}
	if c.Original == nil {
		c.Original = map[string]any{}
	}
	if c.Corrected == nil {
		c.Corrected = map[string]any{}
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	if id != "" {
		if err := l.store.Create(ctx, id, c); err != nil {
			return "", fmt.Errorf("failed to save correction %s: %w", id, err)
		}
		return id, nil
	}

	n, err := l.store.Count(ctx)
	if err != nil {
		return "", err
	}
	for probe := 1; probe <= maxIDProbes; probe++ {
		candidate := AutoID(n + probe)
		err := l.store.Create(ctx, candidate, c)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrCorpusRace) {
			return "", fmt.Errorf("failed to save correction %s: %w", candidate, err)
		}
		l.log.Debug("correction id taken, probing next", "id", candidate)
	}
	return "", fmt.Errorf("no free correction id after %d attempts: %w", maxIDProbes, ErrCorpusRace)
}

// Submit saves a correction and retrains once the corpus holds at least
// the configured minimum.
func (l *Loop) Submit(ctx context.Context, original, corrected map[string]any, id string) (SubmitResult, error) {
	savedID, err := l.SaveCorrection(ctx, original, corrected, id)
	if err != nil {
		return SubmitResult{}, err
	}
	res := SubmitResult{CorrectionID: savedID}

	n, err := l.store.Count(ctx)
	if err != nil {
		return res, err
	}
	if n < l.minCorpus {
		res.Remaining = l.minCorpus - n
		return res, nil
	}

	scores, err := l.Retrain(ctx)
	if err != nil {
		return res, err
	}
	res.Retrained = true
	res.Scores = scores
	return res, nil
}

// Retrain rebuilds the classifier from the full corpus and persists it.
// It returns the number of memorized values per field.
func (l *Loop) Retrain(ctx context.Context) (map[string]int, error) {
	l.trainMu.Lock()
	defer l.trainMu.Unlock()

	corpus, err := l.store.All(ctx)
	if err != nil {
		return nil, err
	}
	next := l.classifier.Next(corpus)

	// The live snapshot only changes once the model file is on disk.
	if l.modelPath != "" {
		if err := next.Save(l.modelPath); err != nil {
			return nil, err
		}
	}
	l.classifier.Install(next)

	scores := next.Sizes()
	l.log.Info("classifier retrained",
		"corpus", len(corpus),
		"fields", len(scores),
		"version", next.Version,
	)
	return scores, nil
}

// Status reports whether the classifier is trained and which fields it knows.
func (l *Loop) Status() Status {
	return Status{
		ClassifierTrained: l.classifier.Trained(),
		KnownFields:       l.classifier.KnownFields(),
	}
}

// CorpusSize returns the number of stored corrections.
func (l *Loop) CorpusSize(ctx context.Context) (int, error) {
	return l.store.Count(ctx)
}
