// Package state persists the canonical ticker → instrument-state mapping as a
// single UTF-8 JSON document. The document is loaded once at the start of a
// run, mutated in memory, and atomically replaced at the end; there is no
// incremental write a concurrent reader could observe half-done.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/divmon/internal/domain"
	"github.com/rs/zerolog"
)

// Document is the persisted mapping from ticker to its state.
type Document map[string]*domain.InstrumentState

// Store reads and writes the state document.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a store for the given file path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log.With().Str("component", "state_store").Logger(),
	}
}

// Path returns the document's location on disk.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file is the first run and yields an
// empty mapping. A corrupt file is copied aside as a timestamped backup and
// processing proceeds with an empty mapping; corruption is never fatal.
func (s *Store) Load() (Document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info().Str("path", s.path).Msg("No state file, starting with empty state")
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102T150405"))
		if werr := os.WriteFile(backup, b, 0o644); werr != nil {
			s.log.Error().Err(werr).Str("backup", backup).Msg("Failed to back up corrupt state file")
		} else {
			s.log.Warn().
				Err(err).
				Str("backup", backup).
				Msg("State file corrupt, backed up and starting with empty state")
		}
		return Document{}, nil
	}

	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save atomically replaces the document: it writes a temp file in the same
// directory and renames it over the target, so readers see either the old or
// the new document, never a partial one.
func (s *Store) Save(doc Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.log.Debug().Str("path", s.path).Int("instruments", len(doc)).Msg("State saved")
	return nil
}
