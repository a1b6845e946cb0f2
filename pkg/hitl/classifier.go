package hitl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
)

// ModelFile is the classifier file name inside the model directory.
const ModelFile = "field_classifiers.json"

// Memory is an immutable snapshot of the field memory: for each patient
// field, the set of normalized values confirmed by reviewers.
type Memory struct {
	Version int
	Fields  map[string]map[string]struct{}
}

// Trained reports whether any value has been memorized.
func (m *Memory) Trained() bool {
	return m != nil && len(m.Fields) > 0
}

// Score returns the memory signal for a field value: 1 for a remembered
// value, 0.5 for an unknown value of a known field, and 0 when the memory
// is empty, the field is unknown or the value is not a string.
func (m *Memory) Score(field string, value any) float64 {
	if !m.Trained() {
		return 0
	}
	s, ok := value.(string)
	if !ok {
		return 0
	}
	values := m.Fields[field]
	if len(values) == 0 {
		return 0
	}
	if _, ok := values[normalize(s)]; ok {
		return 1
	}
	return 0.5
}

// Sizes returns the number of memorized values per field.
func (m *Memory) Sizes() map[string]int {
	sizes := make(map[string]int)
	if m == nil {
		return sizes
	}
	for field, values := range m.Fields {
		sizes[field] = len(values)
	}
	return sizes
}

// Classifier scores patient field values against the field memory. Readers
// always observe a complete snapshot; Train replaces it atomically.
type Classifier struct {
	mem atomic.Pointer[Memory]
}

// NewClassifier returns an untrained classifier.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.mem.Store(&Memory{Fields: map[string]map[string]struct{}{}})
	return c
}

// Memory returns the current snapshot.
func (c *Classifier) Memory() *Memory { return c.mem.Load() }

// Trained reports whether the current snapshot holds any value.
func (c *Classifier) Trained() bool { return c.mem.Load().Trained() }

// KnownFields lists the memorized fields in lexical order.
func (c *Classifier) KnownFields() []string {
	m := c.mem.Load()
	fields := make([]string, 0, len(m.Fields))
	for f := range m.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Score returns the memory signal for a field value against the current
// snapshot. Callers scoring several fields of one record should load the
// snapshot once with Memory and score against it.
func (c *Classifier) Score(field string, value any) float64 {
	return c.mem.Load().Score(field, value)
}

// Train rebuilds the memory from scratch out of the corpus and swaps it in.
// It returns the per-field memory sizes.
func (c *Classifier) Train(corpus []Correction) map[string]int {
	next := c.Next(corpus)
	c.Install(next)
	return next.Sizes()
}

// Next builds the snapshot that would follow the current one for corpus
// without installing it.
func (c *Classifier) Next(corpus []Correction) *Memory {
	next := BuildMemory(corpus)
	next.Version = c.mem.Load().Version + 1
	return next
}

// Install makes m the current snapshot.
func (c *Classifier) Install(m *Memory) { c.mem.Store(m) }

// BuildMemory derives a field memory from every non-empty string value in
// the corrected patient records of the corpus.
func BuildMemory(corpus []Correction) *Memory {
	fields := make(map[string]map[string]struct{})
	for _, corr := range corpus {
		for field, v := range corr.CorrectedPatient() {
			s, ok := v.(string)
			if !ok {
				continue
			}
			n := normalize(s)
			if n == "" {
				continue
			}
			if fields[field] == nil {
				fields[field] = make(map[string]struct{})
			}
			fields[field][n] = struct{}{}
		}
	}
	return &Memory{Fields: fields}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type modelFile struct {
	Version          int                 `json:"version"`
	FieldClassifiers map[string][]string `json:"field_classifiers"`
}

// Save writes the current snapshot to path. The file is replaced atomically.
func (c *Classifier) Save(path string) error {
	return c.mem.Load().Save(path)
}

// Save writes the snapshot to path. The file is replaced atomically.
func (m *Memory) Save(path string) error {
	out := modelFile{Version: m.Version, FieldClassifiers: make(map[string][]string, len(m.Fields))}
	for field, values := range m.Fields {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		slices.Sort(list)
		out.FieldClassifiers[field] = list
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode model", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &PersistenceError{Op: "save model", Path: path, Err: err}
	}
	return nil
}

// Load replaces the current snapshot with the one stored at path. A missing
// file leaves the classifier untrained and is not an error.
func (c *Classifier) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "load model", Path: path, Err: err}
	}

	var in modelFile
	if err := json.Unmarshal(data, &in); err != nil {
		return &PersistenceError{Op: "decode model", Path: path, Err: err}
	}
	m := &Memory{Version: in.Version, Fields: make(map[string]map[string]struct{}, len(in.FieldClassifiers))}
	for field, values := range in.FieldClassifiers {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		m.Fields[field] = set
	}
	c.mem.Store(m)
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
