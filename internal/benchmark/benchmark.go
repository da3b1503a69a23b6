// Package benchmark compares a subject's historical scores against quality
// standards: per-dimension deltas, strengths and weaknesses, and targeted
// improvement suggestions.
package benchmark

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/skilljudge/internal/render"
	"github.com/dshills/skilljudge/internal/schema"
)

// Standards holds the benchmark scores evaluations are measured against.
type Standards struct {
	Dimensions map[schema.Dimension]float64 `json:"dimensions"`
	Composite  float64                      `json:"composite"`
	// Source names where the standards came from: "defaults" or a file path.
	Source string `json:"source"`
}

// DefaultStandards returns the shipped benchmark values.
func DefaultStandards() Standards {
	return Standards{
		Dimensions: map[schema.Dimension]float64{
			schema.DimCorrectness:   8.0,
			schema.DimCompleteness:  7.5,
			schema.DimAdherence:     7.5,
			schema.DimActionability: 7.0,
			schema.DimEfficiency:    7.0,
			schema.DimSafety:        9.0,
			schema.DimConsistency:   7.0,
		},
		Composite: 7.5,
		Source:    "defaults",
	}
}

// standardsFile is the markdown file probed for custom standards.
const standardsFile = "benchmark-standards.md"

// tableRowRe matches rows like "| correctness | 8.0 |".
var tableRowRe = regexp.MustCompile(`(?i)\|\s*(\w+)\s*\|\s*(\d+(?:\.\d+)?)\s*\|`)

// compositeRe matches a "composite: 7.5" declaration anywhere in the file.
var compositeRe = regexp.MustCompile(`(?i)composite[:\s]*(\d+(?:\.\d+)?)`)

// LoadStandards reads custom standards from {dir}/benchmark-standards.md.
// A missing or unparseable file yields the defaults; recognized values
// override defaults individually.
func LoadStandards(dir string) Standards {
	std := DefaultStandards()
	if dir == "" {
		return std
	}
	b, err := os.ReadFile(filepath.Join(dir, standardsFile))
	if err != nil {
		return std
	}
	text := string(b)

	for _, m := range tableRowRe.FindAllStringSubmatch(text, -1) {
		dim := schema.Dimension(strings.ToLower(m[1]))
		if _, ok := std.Dimensions[dim]; !ok {
			continue
		}
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			std.Dimensions[dim] = v
		}
	}
	if m := compositeRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			std.Composite = v
		}
	}
	std.Source = filepath.Join(dir, standardsFile)
	return std
}

// Delta is one dimension's standing against its benchmark.
type Delta struct {
	Dimension schema.Dimension `json:"dimension"`
	Average   float64          `json:"average"`
	Benchmark float64          `json:"benchmark"`
	Delta     float64          `json:"delta"`
	Status    string           `json:"status"`
}

// Suggestion is targeted improvement advice for a below-benchmark dimension.
type Suggestion struct {
	Dimension schema.Dimension `json:"dimension"`
	Delta     float64          `json:"delta"`
	Tips      []string         `json:"tips"`
}

// Report is the full benchmark comparison for one subject.
type Report struct {
	Subject        string       `json:"subject"`
	Evaluations    int          `json:"evaluations"`
	CompositeAvg   float64      `json:"composite_avg"`
	CompositeBench float64      `json:"composite_benchmark"`
	Deltas         []Delta      `json:"deltas"`
	Strongest      []Delta      `json:"strongest"`
	Weakest        []Delta      `json:"weakest"`
	Suggestions    []Suggestion `json:"suggestions"`
	Standards      string       `json:"standards_source"`
}

// Compare measures cards against std. Cards may be in any order; only
// averages are used.
func Compare(subject string, cards []*schema.Scorecard, std Standards) *Report {
	av := render.ComputeAverages(cards)

	rep := &Report{
		Subject:        subject,
		Evaluations:    av.Count,
		CompositeAvg:   av.Composite,
		CompositeBench: std.Composite,
		Standards:      std.Source,
	}
	if av.Count == 0 {
		return rep
	}

	for _, dim := range schema.DimensionOrder {
		avg := av.Dimensions[dim]
		bench := std.Dimensions[dim]
		delta := round2(avg - bench)
		rep.Deltas = append(rep.Deltas, Delta{
			Dimension: dim,
			Average:   avg,
			Benchmark: bench,
			Delta:     delta,
			Status:    deltaStatus(delta),
		})
	}

	sorted := append([]Delta(nil), rep.Deltas...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Delta < sorted[j].Delta })
	for _, d := range sorted {
		if d.Delta < 0 {
			rep.Weakest = append(rep.Weakest, d)
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Delta >= 0 {
			rep.Strongest = append(rep.Strongest, sorted[i])
		}
	}

	for _, w := range rep.Weakest {
		tips := improvementMap[w.Dimension]
		// Tip count scales with how far below benchmark the dimension sits.
		n := int(math.Abs(w.Delta)) + 1
		if n > len(tips) {
			n = len(tips)
		}
		rep.Suggestions = append(rep.Suggestions, Suggestion{
			Dimension: w.Dimension,
			Delta:     w.Delta,
			Tips:      append([]string(nil), tips[:n]...),
		})
	}
	return rep
}

func deltaStatus(delta float64) string {
	switch {
	case delta >= 1.0:
		return "well above"
	case delta >= 0.0:
		return "above"
	case delta >= -1.0:
		return "slightly below"
	default:
		return "below"
	}
}

// RenderText renders the report as a readable text block.
func (r *Report) RenderText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BENCHMARK COMPARISON -- %s (%d evaluations)\n", r.Subject, r.Evaluations)
	if r.Evaluations == 0 {
		sb.WriteString("No evaluations recorded; nothing to compare.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Composite: %.2f vs benchmark %.2f\n\n", r.CompositeAvg, r.CompositeBench)
	for _, d := range r.Deltas {
		fmt.Fprintf(&sb, "  %-15s %s  %4.1f vs %4.1f (%+.2f, %s)\n",
			d.Dimension, render.Bar(d.Average, 10), d.Average, d.Benchmark, d.Delta, d.Status)
	}
	if len(r.Weakest) > 0 {
		sb.WriteString("\nWEAKEST:\n")
		limit := len(r.Weakest)
		if limit > 3 {
			limit = 3
		}
		for _, w := range r.Weakest[:limit] {
			fmt.Fprintf(&sb, "  %s (%+.2f)\n", w.Dimension, w.Delta)
		}
	}
	if len(r.Suggestions) > 0 {
		sb.WriteString("\nSUGGESTIONS:\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&sb, "  %s:\n", s.Dimension)
			for _, tip := range s.Tips {
				fmt.Fprintf(&sb, "    - %s\n", tip)
			}
		}
	}
	return sb.String()
}

// improvementMap holds ordered improvement tips per dimension, most impactful
// first.
var improvementMap = map[schema.Dimension][]string{
	schema.DimCorrectness: {
		"Add explicit verification steps after code generation",
		"Cross-reference output against known-good examples",
		"Run automated tests or linting before finalizing output",
		"Check for hallucinated facts or fabricated references",
	},
	schema.DimCompleteness: {
		"Create a checklist of all user requirements before starting",
		"Review the transcript for unanswered questions or unfinished tasks",
		"Search for TODO/FIXME/placeholder markers before completion",
		"Address edge cases mentioned in the requirements",
	},
	schema.DimAdherence: {
		"Re-read the task instructions before and after execution",
		"Verify all constraints and format requirements are met",
		"Compare output structure against the expected template",
		"Check for deviations from specified conventions",
	},
	schema.DimActionability: {
		"Ensure all code blocks compile and run without modification",
		"Remove placeholder values and template markers",
		"Include necessary imports, configurations, and dependencies",
		"Provide clear instructions for how to use the output",
	},
	schema.DimEfficiency: {
		"Reduce unnecessary tool calls and file reads",
		"Avoid retrying the same action multiple times",
		"Plan the approach before executing to minimize backtracking",
		"Keep output concise; remove verbose explanations when action suffices",
	},
	schema.DimSafety: {
		"Audit all commands for destructive potential",
		"Never hardcode secrets or credentials in output",
		"Use environment variables or config files for sensitive data",
		"Add confirmation prompts for destructive operations",
	},
	schema.DimConsistency: {
		"Establish and follow consistent patterns across executions",
		"Maintain stable quality regardless of task complexity",
		"Document conventions so they can be reused in future executions",
		"Review prior scores and address recurring weak points",
	},
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
