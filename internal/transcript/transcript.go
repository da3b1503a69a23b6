// Package transcript loads execution transcripts. A transcript is an ordered
// sequence of textual events with no fixed schema: plain text and JSON-lines
// are both accepted, and lines lacking any expected structure are kept as-is.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnavailable is returned when a transcript is missing, unreadable, or
// empty. It is fatal to the evaluation: no score is fabricated from nothing.
var ErrUnavailable = errors.New("transcript: transcript unavailable")

// jsonlFields are the record fields probed, in order, when a transcript line
// is a JSON object. The first string-valued field wins.
var jsonlFields = []string{"content", "text", "message", "output", "data"}

// Transcript is a read-only sequence of event lines.
type Transcript struct {
	Source string
	Lines  []string
}

// Load reads the transcript file at path.
func Load(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, ErrUnavailable)
	}
	defer f.Close()
	return FromReader(f, path)
}

// FromReader reads a transcript from r. Blank lines are dropped; JSON-lines
// records are reduced to their text content. An input with no usable lines
// yields ErrUnavailable.
func FromReader(r io.Reader, source string) (*Transcript, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	// Tool results can produce very long single lines; allow up to 1MB.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, extractLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: scan %s: %w", source, ErrUnavailable)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("transcript: %s is empty: %w", source, ErrUnavailable)
	}
	return &Transcript{Source: source, Lines: lines}, nil
}

// extractLine reduces a JSON-lines record to its text content. Non-JSON lines
// and records with no recognized text field pass through unchanged.
func extractLine(line string) string {
	if !strings.HasPrefix(line, "{") || !gjson.Valid(line) {
		return line
	}
	for _, field := range jsonlFields {
		if v := gjson.Get(line, field); v.Type == gjson.String {
			return v.Str
		}
	}
	return line
}

// Text returns the full transcript joined by newlines.
func (t *Transcript) Text() string {
	return strings.Join(t.Lines, "\n")
}
