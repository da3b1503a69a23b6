// Package store persists scorecards as one JSON file per evaluation. The
// store is append-only: records are written once, keyed by subject and
// timestamp, and never overwritten or patched. Each subject's records are
// logically partitioned by the filename prefix, so concurrent evaluations of
// different subjects never touch each other's history.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/skilljudge/internal/schema"
)

// stampLayout keys record filenames. Nanosecond precision keeps two
// back-to-back evaluations of the same subject from colliding.
const stampLayout = "20060102T150405.000000000Z"

// Store reads and writes scorecard records under Dir.
type Store struct {
	Dir string
}

// Save writes card to a new record file and returns its path. The record file
// is created exclusively; an existing file is never overwritten.
func (s *Store) Save(card *schema.Scorecard) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("store: mkdir %s: %w", s.Dir, err)
	}
	name := fmt.Sprintf("%s-%s.json", sanitize(card.Subject), time.Now().UTC().Format(stampLayout))
	path := filepath.Join(s.Dir, name)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(card); err != nil {
		return "", fmt.Errorf("store: encode scorecard: %w", err)
	}

	// Write via a temp file and rename so a crash never leaves a partial
	// record for the history loader to trip over.
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("store: create %s: %w", tmp, err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("store: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("store: close %s: %w", tmp, err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("store: record %s already exists", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return path, nil
}

// List returns the record paths for subject, newest first. Filenames embed
// the timestamp, so lexical order is chronological.
func (s *Store) List(subject string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read dir %s: %w", s.Dir, err)
	}
	prefix := sanitize(subject) + "-"
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || !strings.HasPrefix(name, prefix) {
			continue
		}
		// Subjects can themselves contain hyphens; require the remainder to
		// start with a timestamp digit so "code" never claims "code-review-…".
		rest := strings.TrimPrefix(name, prefix)
		if len(rest) == 0 || rest[0] < '0' || rest[0] > '9' || strings.Count(rest, "-") > 0 {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir, name))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// ListAll returns every record path in the store, newest first.
func (s *Store) ListAll() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read dir %s: %w", s.Dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(s.Dir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Load reads one scorecard record.
func (s *Store) Load(path string) (*schema.Scorecard, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var card schema.Scorecard
	if err := json.Unmarshal(b, &card); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}
	if card.Subject == "" {
		return nil, fmt.Errorf("store: %s: record has no subject", path)
	}
	return &card, nil
}

// sanitize makes a subject safe for use as a filename component.
func sanitize(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, subject)
}
