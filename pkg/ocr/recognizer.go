package ocr

import (
	"context"
	"fmt"
)

// Recognizer is a text recognition engine. Implementations return every
// token they produce; confidence filtering and ordering are applied by the
// caller through Filter.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) ([]Token, error)
}

// RecognitionError reports a failed recognition attempt on a single page.
// The attempt may be retried by the caller.
type RecognitionError struct {
	Engine string
	Path   string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failed for %s: %v", e.Engine, e.Path, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
