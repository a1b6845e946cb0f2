package hitl

import (
	"context"
	"fmt"
	"regexp"
)

// Correction pairs an extraction result with its reviewed version. Both are
// free-form JSON objects; the corrected "patient" object trains the
// classifier.
type Correction struct {
	ID        string         `json:"-"`
	Original  map[string]any `json:"original"`
	Corrected map[string]any `json:"corrected"`
}

// CorrectedPatient returns corrected.patient, or nil when it is absent or
// not an object.
func (c Correction) CorrectedPatient() map[string]any {
	p, _ := c.Corrected["patient"].(map[string]any)
	return p
}

// CorrectionStore is the append-only correction corpus.
type CorrectionStore interface {
	// Count returns the number of stored corrections.
	Count(ctx context.Context) (int, error)
	// Create stores c under id. It returns ErrCorpusRace if id exists.
	Create(ctx context.Context, id string, c Correction) error
	// All returns every stored correction. Order is not meaningful.
	All(ctx context.Context) ([]Correction, error)
}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateID rejects ids that cannot be used as a storage key.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid correction id %q", id)
	}
	return nil
}

// AutoID formats the n-th sequential correction id.
func AutoID(n int) string {
	return fmt.Sprintf("corr_%04d", n)
}
