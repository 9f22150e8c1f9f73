// Package upload pushes generated cover-letter PDFs to the portal's document
// form while keeping a durable record of what has already been uploaded, so
// repeated runs never duplicate a document.
package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/phuslu/log"
)

// storeFile is the tracking document's name inside the data directory.
const storeFile = "uploaded_cover_letters.json"

// record is the on-disk shape of the tracking document. The filename list is
// written sorted so the file diffs cleanly between runs.
type record struct {
	UploadedFiles []string `json:"uploaded_files"`
}

// Store persists the set of uploaded filenames. Corrupt or missing storage
// degrades to the empty set; it is never fatal.
type Store struct {
	path string
}

// NewStore returns a Store rooted in dataDir, creating the directory if
// needed.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &Store{path: filepath.Join(dataDir, storeFile)}, nil
}

// Load returns the set of filenames known to be uploaded. An absent or
// unreadable document yields an empty set with a warning.
func (s *Store) Load() map[string]bool {
	uploaded := make(map[string]bool)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("could not read upload log")
		}
		return uploaded
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("upload log is corrupt, treating as empty")
		return uploaded
	}
	for _, name := range rec.UploadedFiles {
		uploaded[name] = true
	}
	return uploaded
}

// Add marks filename as uploaded and persists immediately (write-through).
func (s *Store) Add(filename string) error {
	uploaded := s.Load()
	uploaded[filename] = true

	names := make([]string, 0, len(uploaded))
	for name := range uploaded {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(record{UploadedFiles: names}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode upload log: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write upload log: %w", err)
	}
	return nil
}

// Reset deletes the tracking document entirely.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset upload log: %w", err)
	}
	return nil
}

// Path returns the tracking document's location.
func (s *Store) Path() string {
	return s.path
}
