package rubric

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/skilljudge/internal/schema"
)

// Rubric files are markdown with a fixed shallow grammar:
//
//	# <title>
//	## Dimensions
//	### <name> (weight: <float>)
//	<description paragraph>
//	- 9-10: <band text>
//	- 7-8: <band text>
//	...
//	## Red Flags
//	- <descriptor>
//	## Bonuses
//	- <descriptor>
//
// Anything outside those shapes is ignored, so authors can keep prose notes
// in the file without breaking the parser.

var (
	dimHeadingRe = regexp.MustCompile(`^###\s+([a-z][a-z_-]*)\s*\(weight:\s*([0-9.]+)\)\s*$`)
	bandRe       = regexp.MustCompile(`^-\s+(\d+)\s*-\s*(\d+)\s*:\s*(.+)$`)
)

// section tracks which "## " block the parser is inside.
type section int

const (
	secNone section = iota
	secDimensions
	secRedFlags
	secBonuses
)

// ParseFile reads and parses the rubric file at path. The returned rubric is
// not yet validated; callers run Validate.
func ParseFile(path, id string) (*Rubric, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rubric: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, id)
}

// Parse reads a rubric from r. This enables testing without files on disk.
func Parse(r io.Reader, id string) (*Rubric, error) {
	out := &Rubric{ID: id}
	sec := secNone
	var cur *Dimension

	flush := func() {
		if cur != nil {
			cur.Description = strings.TrimSpace(cur.Description)
			out.Dimensions = append(out.Dimensions, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "## "):
			flush()
			switch normalizeHeading(trimmed) {
			case "dimensions":
				sec = secDimensions
			case "red flags", "redflags", "red-flags":
				sec = secRedFlags
			case "bonuses":
				sec = secBonuses
			default:
				sec = secNone
			}
			continue
		case strings.HasPrefix(trimmed, "### "):
			if sec != secDimensions {
				continue
			}
			flush()
			m := dimHeadingRe.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, fmt.Errorf("%w: %s: bad dimension heading %q", ErrInvalid, id, trimmed)
			}
			weight, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: bad weight in %q", ErrInvalid, id, trimmed)
			}
			cur = &Dimension{Name: schema.Dimension(m[1]), Weight: weight}
			continue
		}

		switch sec {
		case secDimensions:
			if cur == nil {
				continue
			}
			if m := bandRe.FindStringSubmatch(trimmed); m != nil {
				cur.Bands = append(cur.Bands, Band{
					Range: m[1] + "-" + m[2],
					Text:  strings.TrimSpace(m[3]),
				})
			} else if trimmed != "" {
				if cur.Description != "" {
					cur.Description += " "
				}
				cur.Description += trimmed
			}
		case secRedFlags:
			if d, ok := bulletText(trimmed); ok {
				out.RedFlags = append(out.RedFlags, d)
			}
		case secBonuses:
			if d, ok := bulletText(trimmed); ok {
				out.Bonuses = append(out.Bonuses, d)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("rubric: scan %s: %w", id, err)
	}
	flush()
	return out, nil
}

// normalizeHeading lowercases a "## " heading and strips the marker.
func normalizeHeading(line string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
}

// bulletText returns the content of a "- " or "* " bullet line.
func bulletText(line string) (string, bool) {
	for _, pfx := range []string{"- ", "* "} {
		if strings.HasPrefix(line, pfx) {
			t := strings.TrimSpace(strings.TrimPrefix(line, pfx))
			return t, t != ""
		}
	}
	return "", false
}
