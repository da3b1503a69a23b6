// Package rubric loads, validates, and resolves scoring rubrics. A rubric
// names the seven weighted dimensions with their score-band descriptions,
// plus the red-flag and bonus descriptors used for automatic adjustments.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/skilljudge/internal/schema"
)

// ErrNotFound is returned when an explicitly requested rubric does not exist.
var ErrNotFound = errors.New("rubric: rubric not found")

// ErrInvalid is returned when a rubric fails validation, e.g. when its
// dimension weights do not sum to 1.0. A malformed rubric aborts the
// evaluation; no best-effort scoring proceeds on it.
var ErrInvalid = errors.New("rubric: invalid rubric")

// weightEpsilon is the tolerance on the weight-sum invariant.
const weightEpsilon = 0.01

// Band is one score-band description, e.g. "9-10" with its criteria text.
type Band struct {
	Range string
	Text  string
}

// Dimension is one weighted evaluation axis of a rubric.
type Dimension struct {
	Name        schema.Dimension
	Weight      float64
	Description string
	Bands       []Band
}

// Rubric is a validated scoring definition. Immutable once resolved: every
// Resolve call returns a fresh value, so a rubric file changing mid-flight
// never alters an evaluation already in progress.
type Rubric struct {
	ID         string
	Dimensions []Dimension
	RedFlags   []string
	Bonuses    []string
}

// Dimension returns the named dimension entry, or nil.
func (r *Rubric) Dimension(name schema.Dimension) *Dimension {
	for i := range r.Dimensions {
		if r.Dimensions[i].Name == name {
			return &r.Dimensions[i]
		}
	}
	return nil
}

// Validate checks the rubric invariants: each of the seven canonical
// dimensions present exactly once, and weights summing to 1.0 within epsilon.
func Validate(r *Rubric) error {
	seen := make(map[schema.Dimension]bool, len(r.Dimensions))
	sum := 0.0
	for _, d := range r.Dimensions {
		if seen[d.Name] {
			return fmt.Errorf("%w: %s: dimension %q defined twice", ErrInvalid, r.ID, d.Name)
		}
		seen[d.Name] = true
		sum += d.Weight
	}
	for _, name := range schema.DimensionOrder {
		if !seen[name] {
			return fmt.Errorf("%w: %s: missing dimension %q", ErrInvalid, r.ID, name)
		}
	}
	if len(r.Dimensions) != len(schema.DimensionOrder) {
		return fmt.Errorf("%w: %s: expected %d dimensions, got %d",
			ErrInvalid, r.ID, len(schema.DimensionOrder), len(r.Dimensions))
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: %s: dimension weights sum to %.3f, want 1.0 ±%.2f",
			ErrInvalid, r.ID, sum, weightEpsilon)
	}
	return nil
}

// WithWeights returns a copy of r with the given weight overrides applied.
// Unknown dimension names are ignored. The copy is re-validated.
func (r *Rubric) WithWeights(overrides map[string]float64) (*Rubric, error) {
	out := *r
	out.Dimensions = make([]Dimension, len(r.Dimensions))
	copy(out.Dimensions, r.Dimensions)
	for i := range out.Dimensions {
		if w, ok := overrides[string(out.Dimensions[i].Name)]; ok {
			out.Dimensions[i].Weight = w
		}
	}
	if err := Validate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolver locates rubric files. Dir may be empty, in which case only the
// builtin default can resolve.
type Resolver struct {
	Dir string
	// DefaultName optionally names the rubric tried at the default step
	// before the "default" file and the builtin. An absent DefaultName file
	// falls through; a malformed one aborts.
	DefaultName string
}

// resolveRule is one step of the resolution chain. It returns (rubric, true)
// on a match, (nil, false) to fall through, or an error to abort.
type resolveRule struct {
	name  string
	apply func() (*Rubric, bool, error)
}

// Resolve returns the rubric for subject. Resolution order:
//
//  1. Explicit override name — must exist or the resolution fails.
//  2. Exact match of subject to a rubric file.
//  3. Category-prefix match (longest prefix of the hyphenated subject name).
//  4. The default step, which never fails: the configured DefaultName if set
//     and present, else the "default" rubric file, else the builtin.
//
// The chain is an ordered rule list evaluated to the first match.
func (rv Resolver) Resolve(subject, override string) (*Rubric, error) {
	rules := []resolveRule{
		{"override", func() (*Rubric, bool, error) {
			if override == "" {
				return nil, false, nil
			}
			r, err := rv.loadNamed(override)
			if err != nil {
				return nil, false, fmt.Errorf("%w: override %q", ErrNotFound, override)
			}
			return r, true, nil
		}},
		{"exact", func() (*Rubric, bool, error) {
			r, err := rv.loadNamed(subject)
			if errors.Is(err, ErrNotFound) {
				return nil, false, nil
			}
			if err != nil {
				// A present-but-malformed rubric aborts; no silent fallback.
				return nil, false, err
			}
			return r, true, nil
		}},
		{"prefix", func() (*Rubric, bool, error) {
			parts := strings.Split(subject, "-")
			for i := len(parts) - 1; i > 0; i-- {
				candidate := strings.Join(parts[:i], "-")
				if r, err := rv.loadNamed(candidate); err == nil {
					return r, true, nil
				}
			}
			return nil, false, nil
		}},
		{"default", func() (*Rubric, bool, error) {
			if rv.DefaultName != "" {
				r, err := rv.loadNamed(rv.DefaultName)
				if err == nil {
					return r, true, nil
				}
				if !errors.Is(err, ErrNotFound) {
					return nil, false, err
				}
			}
			if r, err := rv.loadNamed("default"); err == nil {
				return r, true, nil
			}
			return Default(), true, nil
		}},
	}

	for _, rule := range rules {
		r, ok, err := rule.apply()
		if err != nil {
			return nil, err
		}
		if ok {
			if err := Validate(r); err != nil {
				return nil, err
			}
			return r, nil
		}
	}
	// The default rule always matches; unreachable.
	return nil, ErrNotFound
}

// loadNamed parses {Dir}/{name}.md. Parse errors surface as load failures so
// a malformed candidate falls through the chain only for non-explicit rules.
func (rv Resolver) loadNamed(name string) (*Rubric, error) {
	if rv.Dir == "" || name == "" {
		return nil, ErrNotFound
	}
	path := filepath.Join(rv.Dir, name+".md")
	if _, err := os.Stat(path); err != nil {
		return nil, ErrNotFound
	}
	return ParseFile(path, name)
}
