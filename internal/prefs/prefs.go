// Package prefs persists viewer preferences as a small JSON file.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"feedviewer/internal/filter"
	"feedviewer/internal/logging"
)

// ErrNoSources is returned when no source names are configured.
var ErrNoSources = errors.New("please enter at least one subreddit")

// Prefs are the persisted viewer settings. Subreddits is the raw
// comma-separated list as the user entered it.
type Prefs struct {
	Subreddits string `json:"subreddits"`
	Images     bool   `json:"imagesOnly"`
	Videos     bool   `json:"videosOnly"`
	Shuffle    bool   `json:"isShuffled"`
}

// Default returns the settings used when nothing is stored: both
// filters on, no shuffle.
func Default() Prefs {
	return Prefs{Images: true, Videos: true}
}

// Sources returns the parsed source names.
func (p Prefs) Sources() []string {
	return ParseSources(p.Subreddits)
}

// Filter returns the display options.
func (p Prefs) Filter() filter.Options {
	return filter.Options{Images: p.Images, Videos: p.Videos, Shuffle: p.Shuffle}
}

// ParseSources splits a comma-separated list, trimming blanks.
func ParseSources(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Decode parses a stored file. Absent fields keep their defaults.
func Decode(data []byte) (Prefs, error) {
	var raw struct {
		Subreddits string `json:"subreddits"`
		Images     *bool  `json:"imagesOnly"`
		Videos     *bool  `json:"videosOnly"`
		Shuffle    bool   `json:"isShuffled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Default(), fmt.Errorf("parse prefs: %w", err)
	}

	p := Default()
	p.Subreddits = raw.Subreddits
	if raw.Images != nil {
		p.Images = *raw.Images
	}
	if raw.Videos != nil {
		p.Videos = *raw.Videos
	}
	p.Shuffle = raw.Shuffle
	return p, nil
}

// Store reads and writes the preferences file.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore returns a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path, log: logging.For("prefs")}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored preferences. A missing or unreadable file
// yields the defaults.
func (s *Store) Load() Prefs {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Debug().Err(err).Msg("could not read preferences")
		}
		return Default()
	}

	p, err := Decode(data)
	if err != nil {
		s.log.Debug().Err(err).Msg("could not load preferences")
		return Default()
	}
	return p
}

// Save writes p atomically.
func (s *Store) Save(p Prefs) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.json")
	if err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}

// Clear removes the stored file, restoring the defaults.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear prefs: %w", err)
	}
	return nil
}
