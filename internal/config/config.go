// Package config loads and edits the judge configuration. A Config is a
// copy-on-read snapshot: it is loaded once per invocation, passed through the
// pipeline by value, and never mutated in place — edits produce a whole new
// file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mode holds the switches for one evaluation context (automatic or manual).
type Mode struct {
	Enabled bool `json:"enabled"`
	// Always and Never are mutually exclusive per-subject lists: inserting a
	// subject into one removes it from the other.
	Always          []string `json:"always,omitempty"`
	Never           []string `json:"never,omitempty"`
	Threshold       float64  `json:"threshold"`
	BlockOnCritical bool     `json:"block_on_critical"`
}

// Scoring carries optional dimension weight overrides applied to the builtin
// default rubric. Rubric files keep their own weights.
type Scoring struct {
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
}

// Config is the full judge configuration record.
type Config struct {
	AutoJudge   Mode    `json:"auto_judge"`
	ManualJudge Mode    `json:"manual_judge"`
	Scoring     Scoring `json:"scoring"`
	// DefaultRubric optionally names the rubric used when no subject match
	// exists; empty means the builtin default.
	DefaultRubric string `json:"default_rubric,omitempty"`
}

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		AutoJudge:   Mode{Enabled: true, Threshold: 4.0},
		ManualJudge: Mode{Enabled: true, Threshold: 0.0},
	}
}

// Load reads the config file at path. A missing path yields the default
// config and no error; a present-but-unreadable file returns the default
// alongside the error so callers can degrade with a warning.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save rewrites the whole config file atomically.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: rename %s: %w", tmp, err)
	}
	return nil
}

// WithAlways returns a copy with subject in the auto-judge always list and
// removed from the never list.
func (c Config) WithAlways(subject string) Config {
	c.AutoJudge.Always = addUnique(c.AutoJudge.Always, subject)
	c.AutoJudge.Never = removeFrom(c.AutoJudge.Never, subject)
	return c
}

// WithNever returns a copy with subject in the auto-judge never list and
// removed from the always list.
func (c Config) WithNever(subject string) Config {
	c.AutoJudge.Never = addUnique(c.AutoJudge.Never, subject)
	c.AutoJudge.Always = removeFrom(c.AutoJudge.Always, subject)
	return c
}

// InNever reports whether subject is excluded from automatic judgment.
func (c Config) InNever(subject string) bool {
	return contains(c.AutoJudge.Never, subject)
}

// InAlways reports whether subject is forced into automatic judgment.
func (c Config) InAlways(subject string) bool {
	return contains(c.AutoJudge.Always, subject)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func addUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	out := append([]string(nil), list...)
	return append(out, s)
}

func removeFrom(list []string, s string) []string {
	var out []string
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
