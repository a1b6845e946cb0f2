package hitl

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON document per correction in a directory.
type FileStore struct {
	dir string
}

var _ CorrectionStore = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory must exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the corpus directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &PersistenceError{Op: "list corpus", Path: s.dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	names, err := s.names()
	return len(names), err
}

// Create writes the correction to a temporary file and hard-links it to its
// final name, so an existing correction is never replaced.
func (s *FileStore) Create(ctx context.Context, id string, c Correction) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	final := s.path(id)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode correction", Path: final, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".corr-*.tmp")
	if err != nil {
		return &PersistenceError{Op: "save correction", Path: final, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save correction", Path: final, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save correction", Path: final, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "save correction", Path: final, Err: err}
	}

	if err := os.Link(tmp.Name(), final); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrCorpusRace
		}
		return &PersistenceError{Op: "save correction", Path: final, Err: err}
	}
	return nil
}

// All reads every correction in directory order.
func (s *FileStore) All(ctx context.Context) ([]Correction, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	corpus := make([]Correction, 0, len(names))
	for _, name := range names {
		p := filepath.Join(s.dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &PersistenceError{Op: "read correction", Path: p, Err: err}
		}
		var c Correction
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, &PersistenceError{Op: "decode correction", Path: p, Err: err}
		}
		c.ID = strings.TrimSuffix(name, ".json")
		corpus = append(corpus, c)
	}
	return corpus, nil
}
