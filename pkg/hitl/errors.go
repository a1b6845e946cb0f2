package hitl

import (
	"errors"
	"fmt"
)

// ErrCorpusRace is returned when a correction id is already taken. The
// existing correction is never overwritten.
var ErrCorpusRace = errors.New("correction id already exists")

// PersistenceError reports a failed durable write or read.
type PersistenceError struct {
	Op   string // "save correction", "load corpus", "save model", ...
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
