// Package render produces output from a finished schema.Scorecard: JSON,
// Markdown, and a boxed text scorecard with bar charts and trend arrows.
package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dshills/skilljudge/internal/schema"
)

const (
	barFull  = "█"
	barEmpty = "░"
	barWidth = 10

	trendUp     = "↑"
	trendDown   = "↓"
	trendStable = "→"

	boxTL = "╔"
	boxTR = "╗"
	boxBL = "╚"
	boxBR = "╝"
	boxH  = "═"
	boxV  = "║"
	boxML = "╠"
	boxMR = "╣"

	cardWidth = 78
)

// RenderJSON produces a pretty-printed JSON representation of the scorecard.
// The output round-trips through json.Unmarshal back to an equal Scorecard.
func RenderJSON(card *schema.Scorecard) ([]byte, error) {
	if card == nil {
		return nil, fmt.Errorf("render: nil scorecard")
	}
	b, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a Markdown summary of the scorecard, suitable for
// PR comments or terminal output.
func RenderMarkdown(card *schema.Scorecard) string {
	if card == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Scorecard — %s\n\n", card.Subject)
	fmt.Fprintf(&sb, "**Grade:** %s (%s)  \n", card.Grade, card.GradeLabel)
	fmt.Fprintf(&sb, "**Composite:** %.1f/10.0 (raw %.1f)  \n", card.Composite, card.RawComposite)
	fmt.Fprintf(&sb, "**Rubric:** %s | **Transcript:** %d lines | %s\n\n",
		card.Rubric, card.TranscriptLines, card.Timestamp)
	if card.OneLiner != "" {
		fmt.Fprintf(&sb, "%s\n\n", card.OneLiner)
	}

	sb.WriteString("| Dimension | Score | Weight | Justification |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, ds := range card.Dimensions {
		fmt.Fprintf(&sb, "| %s | %.1f | %.2f | %s |\n",
			ds.Dimension, ds.Score, ds.Weight, mdEscape(ds.Justification))
	}
	sb.WriteString("\n")

	adj := card.Adjustments
	if len(adj.Flags) > 0 || len(adj.Bonuses) > 0 {
		sb.WriteString("### Adjustments\n\n")
		for _, f := range adj.Flags {
			fmt.Fprintf(&sb, "- **flag** −%.2f %s", f.Deduction, mdEscape(f.Name))
			if f.Evidence != "" {
				fmt.Fprintf(&sb, " (%s)", mdEscape(f.Evidence))
			}
			sb.WriteString("\n")
		}
		for _, b := range adj.Bonuses {
			fmt.Fprintf(&sb, "- **bonus** +%.2f %s", b.Credit, mdEscape(b.Name))
			if b.Evidence != "" {
				fmt.Fprintf(&sb, " (%s)", mdEscape(b.Evidence))
			}
			sb.WriteString("\n")
		}
		if adj.Note != "" {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(adj.Note))
		}
		sb.WriteString("\n")
	}

	if len(card.CriticalIssues) > 0 {
		sb.WriteString("### Critical Issues\n\n")
		for _, issue := range card.CriticalIssues {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(issue))
		}
		sb.WriteString("\n")
	}
	if len(card.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		for _, rec := range card.Recommendations {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(rec))
		}
		sb.WriteString("\n")
	}
	if len(card.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range card.Warnings {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(w))
		}
		sb.WriteString("\n")
	}
	if card.Review != nil {
		fmt.Fprintf(&sb, "### Advisory Review (%s)\n\n%s\n\n", card.Review.Model, mdEscape(card.Review.Summary))
		for _, s := range card.Review.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(s))
		}
	}
	return sb.String()
}

// RenderText renders the scorecard as a boxed Unicode chart. prior holds the
// subject's earlier scorecards, newest first, and drives the trend arrows.
func RenderText(card *schema.Scorecard, prior []*schema.Scorecard) string {
	if card == nil {
		return ""
	}
	var lines []string
	lines = append(lines, rule(boxTL, boxTR))
	lines = append(lines, padLine(fmt.Sprintf("SKILLJUDGE SCORECARD -- %s", card.Subject)))
	lines = append(lines, padLine(fmt.Sprintf("Grade: %s (%s)  |  Composite: %.1f/10.0  |  %s",
		card.Grade, card.GradeLabel, card.Composite, card.Timestamp)))
	lines = append(lines, rule(boxML, boxMR))

	for _, ds := range card.Dimensions {
		// The rendered card is the newest point in the series.
		trend := Trend(append(dimensionSeries(prior, ds.Dimension), ds.Score))
		label := fmt.Sprintf("%-15s", capitalize(string(ds.Dimension)))
		entry := fmt.Sprintf("%s%s  %4.1f/10 (w=%.2f) %s %s",
			label, Bar(ds.Score, barWidth), ds.Score, ds.Weight, trend, ds.Justification)
		lines = append(lines, padLine(entry))
	}

	lines = append(lines, rule(boxML, boxMR))
	summary := card.OneLiner
	if summary == "" {
		summary = card.Summary
	}
	lines = append(lines, padLine(fmt.Sprintf("Summary: %s", summary)))

	if len(card.CriticalIssues) > 0 {
		lines = append(lines, padLine(""))
		lines = append(lines, padLine("CRITICAL ISSUES:"))
		for _, issue := range card.CriticalIssues {
			lines = append(lines, padLine(fmt.Sprintf("  ! %s", issue)))
		}
	}
	if len(card.Recommendations) > 0 {
		lines = append(lines, padLine(""))
		lines = append(lines, padLine("RECOMMENDATIONS:"))
		for _, rec := range card.Recommendations {
			lines = append(lines, padLine(fmt.Sprintf("  * %s", rec)))
		}
	}
	lines = append(lines, rule(boxBL, boxBR))
	return strings.Join(lines, "\n")
}

// Averages summarizes a set of scorecards.
type Averages struct {
	Count      int                          `json:"count"`
	Composite  float64                      `json:"composite_avg"`
	Dimensions map[schema.Dimension]float64 `json:"dimension_averages"`
}

// ComputeAverages computes mean composite and dimension scores over cards.
func ComputeAverages(cards []*schema.Scorecard) Averages {
	av := Averages{Count: len(cards)}
	if len(cards) == 0 {
		return av
	}
	var compSum float64
	for _, card := range cards {
		compSum += card.Composite
	}
	av.Composite = round2(compSum / float64(len(cards)))

	av.Dimensions = make(map[schema.Dimension]float64, len(schema.DimensionOrder))
	for _, dim := range schema.DimensionOrder {
		var sum float64
		n := 0
		for _, card := range cards {
			if ds := card.DimensionScoreByName(dim); ds != nil {
				sum += ds.Score
				n++
			}
		}
		if n > 0 {
			av.Dimensions[dim] = round2(sum / float64(n))
		}
	}
	return av
}

// RenderAverages renders an Averages block as boxed text.
func RenderAverages(av Averages) string {
	if av.Count == 0 {
		return "No data available for averages."
	}
	var lines []string
	lines = append(lines, rule(boxTL, boxTR))
	lines = append(lines, padLine(fmt.Sprintf("HISTORICAL AVERAGES (%d scores)", av.Count)))
	lines = append(lines, rule(boxML, boxMR))
	lines = append(lines, padLine(fmt.Sprintf("Composite Average: %.2f/10.0", av.Composite)))
	lines = append(lines, padLine(""))
	for _, dim := range schema.DimensionOrder {
		avg, ok := av.Dimensions[dim]
		if !ok {
			continue
		}
		lines = append(lines, padLine(fmt.Sprintf("  %-15s%s  %4.1f/10", capitalize(string(dim)), Bar(avg, barWidth), avg)))
	}
	lines = append(lines, rule(boxBL, boxBR))
	return strings.Join(lines, "\n")
}

// Bar renders a filled/empty bar for a 0–10 score.
func Bar(score float64, width int) string {
	filled := int(math.Round(score / 10 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, width-filled)
}

// Trend returns an arrow for a score series, oldest first. It compares the
// newest value against the start of the last three points; movement within
// ±0.5 reads as stable.
func Trend(values []float64) string {
	if len(values) < 2 {
		return trendStable
	}
	recent := values
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	delta := recent[len(recent)-1] - recent[0]
	switch {
	case delta > 0.5:
		return trendUp
	case delta < -0.5:
		return trendDown
	}
	return trendStable
}

// dimensionSeries extracts one dimension's score series from prior cards,
// oldest first.
func dimensionSeries(prior []*schema.Scorecard, dim schema.Dimension) []float64 {
	var out []float64
	for i := len(prior) - 1; i >= 0; i-- {
		if ds := prior[i].DimensionScoreByName(dim); ds != nil {
			out = append(out, ds.Score)
		}
	}
	return out
}

// padLine fits content between the box borders, truncating with an ellipsis.
func padLine(content string) string {
	inner := cardWidth - 4
	if utf8.RuneCountInString(content) > inner {
		runes := []rune(content)
		content = string(runes[:inner-1]) + "…"
	}
	pad := inner - utf8.RuneCountInString(content)
	return boxV + " " + content + strings.Repeat(" ", pad) + " " + boxV
}

func rule(left, right string) string {
	return left + strings.Repeat(boxH, cardWidth-2) + right
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
