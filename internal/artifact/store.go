// internal/artifact/store.go
//
// Every document the pipeline produces is an artifact addressed by the row
// index and tracking code of the shipment it belongs to. The store owns the
// on-disk naming so no two stages can disagree about where a file lives.

package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Kind distinguishes the three artifact families.
type Kind string

const (
	KindLabel  Kind = "label"
	KindNote   Kind = "note"
	KindMerged Kind = "merged"
)

// Ref addresses exactly one artifact. Index is the 0-based row position;
// the pair (Index, TrackingCode) ties the file back to one recipient row and
// one purchased shipment.
type Ref struct {
	Index        int
	TrackingCode string
	Kind         Kind
}

// Filename returns the artifact's base name, e.g. ROW_000_9400X_LABEL.pdf.
func (r Ref) Filename() string {
	return fmt.Sprintf("ROW_%03d_%s_%s.pdf", r.Index, r.TrackingCode, r.Kind.suffix())
}

func (k Kind) suffix() string {
	switch k {
	case KindLabel:
		return "LABEL"
	case KindNote:
		return "NOTE"
	case KindMerged:
		return "LABEL_AND_NOTE"
	default:
		return string(k)
	}
}

// Store resolves refs to paths under the three output directories and
// persists artifact bytes.
type Store struct {
	labelsDir  string
	notesDir   string
	resultsDir string
}

// NewStore builds a store over the output tree.
func NewStore(labelsDir, notesDir, resultsDir string) *Store {
	return &Store{
		labelsDir:  labelsDir,
		notesDir:   notesDir,
		resultsDir: resultsDir,
	}
}

// Path resolves a ref to its on-disk location.
func (s *Store) Path(ref Ref) string {
	return filepath.Join(s.dirFor(ref.Kind), ref.Filename())
}

func (s *Store) dirFor(kind Kind) string {
	switch kind {
	case KindLabel:
		return s.labelsDir
	case KindNote:
		return s.notesDir
	default:
		return s.resultsDir
	}
}

// Write persists artifact bytes, creating the parent directory if needed.
func (s *Store) Write(ref Ref, data []byte) error {
	path := s.Path(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: ensure dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the artifact is present on disk.
func (s *Store) Exists(ref Ref) (bool, error) {
	info, err := os.Stat(s.Path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("artifact: stat %s: %w", s.Path(ref), err)
	}
	return !info.IsDir(), nil
}
