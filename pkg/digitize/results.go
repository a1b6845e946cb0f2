package digitize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gardar/labdigitize/pkg/hitl"
)

// FileResultStore writes each result as a JSON file in a directory.
type FileResultStore struct {
	dir string
}

var _ ResultStore = (*FileResultStore)(nil)

// NewFileResultStore returns a store rooted at dir. The directory must exist.
func NewFileResultStore(dir string) *FileResultStore {
	return &FileResultStore{dir: dir}
}

func (s *FileResultStore) Dir() string { return s.dir }

func (s *FileResultStore) SaveResult(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &hitl.PersistenceError{Op: "save result", Path: path, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return &hitl.PersistenceError{Op: "save result", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return &hitl.PersistenceError{Op: "save result", Path: path, Err: err}
	}
	return nil
}

func (s *FileResultStore) CountResults(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, &hitl.PersistenceError{Op: "list results", Path: s.dir, Err: err}
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "result_") && filepath.Ext(name) == ".json" {
			n++
		}
	}
	return n, nil
}
