// Package engine orchestrates one full evaluation: rubric resolution,
// transcript loading, evidence extraction, dimension scoring, composite
// adjustment, grading, history comparison, the pass/block decision, and
// scorecard persistence. Fatal errors abort before anything is persisted;
// recoverable problems become scorecard warnings.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/skilljudge/internal/composite"
	"github.com/dshills/skilljudge/internal/config"
	"github.com/dshills/skilljudge/internal/evidence"
	"github.com/dshills/skilljudge/internal/gate"
	"github.com/dshills/skilljudge/internal/grade"
	"github.com/dshills/skilljudge/internal/history"
	"github.com/dshills/skilljudge/internal/rubric"
	"github.com/dshills/skilljudge/internal/schema"
	"github.com/dshills/skilljudge/internal/scorer"
	"github.com/dshills/skilljudge/internal/store"
	"github.com/dshills/skilljudge/internal/transcript"
)

// ErrSubjectUndetected is returned when an automatic evaluation cannot
// determine which skill or agent produced the transcript. It is non-fatal to
// the caller's workflow: hook mode treats it as "nothing to judge".
var ErrSubjectUndetected = errors.New("engine: subject undetected")

// ErrDisabled is returned when the configuration turns the requested
// evaluation context off. Hook mode treats it as a pass.
var ErrDisabled = errors.New("engine: evaluation disabled by configuration")

// criticalScore is the dimension score below which a dimension is listed as a
// critical issue.
const criticalScore = 5.0

// recommendScore is the dimension score below which an improvement
// recommendation is emitted.
const recommendScore = 8.0

// maxRecommendations bounds the recommendation list.
const maxRecommendations = 3

// Options selects the inputs for one evaluation.
type Options struct {
	Subject        string
	TranscriptPath string
	RubricDir      string
	ScoresDir      string
	ConfigPath     string
	// RubricOverride names an explicit rubric file; resolution fails if it is
	// absent.
	RubricOverride string
	Mode           gate.Mode
	// Reviewer, when set, produces the optional advisory review. It runs
	// before persistence so the review lands in the record; a reviewer
	// failure is a warning, never an evaluation failure.
	Reviewer func(card *schema.Scorecard, transcript []string) (*schema.Review, error)
}

// Result is one completed evaluation.
type Result struct {
	Card      *schema.Scorecard
	Decision  schema.Decision
	SavedPath string
	Config    config.Config
}

// Evaluate runs the full pipeline and persists the scorecard.
func Evaluate(opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = gate.ModeManual
	}
	if opts.Subject == "" {
		if opts.Mode == gate.ModeAutomatic {
			return nil, ErrSubjectUndetected
		}
		return nil, errors.New("engine: subject is required")
	}

	var warnings []string
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("using default configuration: %v", err))
	}
	switch opts.Mode {
	case gate.ModeAutomatic:
		if !cfg.AutoJudge.Enabled && !cfg.InAlways(opts.Subject) {
			return nil, ErrDisabled
		}
	case gate.ModeManual:
		if !cfg.ManualJudge.Enabled {
			return nil, ErrDisabled
		}
	}

	r, err := rubric.Resolver{Dir: opts.RubricDir, DefaultName: cfg.DefaultRubric}.Resolve(opts.Subject, opts.RubricOverride)
	if err != nil {
		return nil, err
	}
	// Config weight overrides apply to the default rubric only; a rubric file
	// resolved for the subject keeps its own weights.
	if r.ID == "default" && len(cfg.Scoring.Dimensions) > 0 {
		r, err = r.WithWeights(cfg.Scoring.Dimensions)
		if err != nil {
			return nil, err
		}
	}

	tr, err := transcript.Load(opts.TranscriptPath)
	if err != nil {
		return nil, err
	}

	st := &store.Store{Dir: opts.ScoresDir}
	window, err := history.Load(st, opts.Subject)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, window.Warnings...)

	set := evidence.Extract(tr)
	scores := scorer.ScoreAll(set, r, window)

	raw := composite.Weighted(scores)
	flags := evidence.MatchFlags(r.RedFlags, set)
	bonuses := evidence.MatchBonuses(r.Bonuses, set)
	final, adjustments := composite.Apply(raw, flags, bonuses)
	letter, label := grade.Map(final)

	card := &schema.Scorecard{
		Subject:         opts.Subject,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Rubric:          r.ID,
		Transcript:      tr.Source,
		TranscriptLines: len(tr.Lines),
		Dimensions:      scores,
		RawComposite:    raw,
		Adjustments:     adjustments,
		Composite:       final,
		Grade:           letter,
		GradeLabel:      label,
		CriticalIssues:  criticalIssues(scores),
		Recommendations: recommendations(scores),
		Warnings:        warnings,
	}
	if anomalies := window.Anomalies(scores); len(anomalies) > 0 {
		card.Anomalous = true
		card.Warnings = append(card.Warnings, anomalies...)
	}
	card.OneLiner = oneLiner(card)
	card.Summary = summary(card)

	if opts.Reviewer != nil {
		review, err := opts.Reviewer(card, tr.Lines)
		if err != nil {
			card.Warnings = append(card.Warnings, fmt.Sprintf("advisory review failed: %v", err))
		} else {
			card.Review = review
		}
	}

	decision := gate.Decide(card, cfg, opts.Mode)

	path, err := st.Save(card)
	if err != nil {
		return nil, err
	}
	return &Result{Card: card, Decision: decision, SavedPath: path, Config: cfg}, nil
}

// criticalIssues returns the names of dimensions scoring below the critical
// threshold.
func criticalIssues(scores []schema.DimensionScore) []string {
	var out []string
	for _, ds := range scores {
		if ds.Score < criticalScore {
			out = append(out, string(ds.Dimension))
		}
	}
	return out
}

// recommendationMap holds the canonical improvement advice per dimension.
var recommendationMap = map[schema.Dimension]string{
	schema.DimCorrectness:   "Review output for factual errors and validate against expected behavior",
	schema.DimCompleteness:  "Ensure all requested items are addressed; check for skipped work",
	schema.DimAdherence:     "Re-read the task instructions and verify every constraint is met",
	schema.DimActionability: "Remove placeholders and make sure the output is directly usable",
	schema.DimEfficiency:    "Reduce unnecessary tool invocations and avoid repeated actions",
	schema.DimSafety:        "Audit for exposed secrets, destructive commands, and permission issues",
	schema.DimConsistency:   "Compare with prior executions and maintain quality baselines",
}

// recommendations returns one to three improvement strings, worst dimensions
// first.
func recommendations(scores []schema.DimensionScore) []string {
	ordered := append([]schema.DimensionScore(nil), scores...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score < ordered[j].Score })

	var out []string
	for _, ds := range ordered {
		if ds.Score >= recommendScore {
			break
		}
		out = append(out, recommendationMap[ds.Dimension])
		if len(out) == maxRecommendations {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, "Maintain current quality; all dimensions meet expectations")
	}
	return out
}

// oneLiner builds the single-sentence verdict for the scorecard.
func oneLiner(card *schema.Scorecard) string {
	best, worst := card.Dimensions[0], card.Dimensions[0]
	for _, ds := range card.Dimensions[1:] {
		if ds.Score > best.Score {
			best = ds
		}
		if ds.Score < worst.Score {
			worst = ds
		}
	}
	display := subjectDisplay(card.Subject)

	switch {
	case card.Composite >= 9.0:
		return fmt.Sprintf("Excellent %s (%s) -- top marks across all dimensions", display, card.Grade)
	case card.Composite >= 7.0:
		note := "solid across the board"
		if best.Score >= 9 {
			note = fmt.Sprintf("strong %s", best.Dimension)
		}
		caveat := ""
		if worst.Score < 7 {
			caveat = fmt.Sprintf(", %s could improve", worst.Dimension)
		}
		return fmt.Sprintf("Good %s (%s) -- %s%s", display, card.Grade, note, caveat)
	case card.Composite >= 5.0:
		return fmt.Sprintf("Acceptable %s (%s) -- %s needs attention (%.1f/10)",
			display, card.Grade, worst.Dimension, worst.Score)
	default:
		return fmt.Sprintf("Below-par %s (%s) -- critical gaps in %s (%.1f/10)",
			display, card.Grade, worst.Dimension, worst.Score)
	}
}

// summary builds the short free-text summary from the grade label and any
// critical issues.
func summary(card *schema.Scorecard) string {
	var parts []string
	switch card.GradeLabel {
	case "Excellent":
		parts = append(parts, "Outstanding execution across all dimensions.")
	case "Good":
		parts = append(parts, "Solid execution with minor areas for improvement.")
	case "Acceptable":
		parts = append(parts, "Meets baseline expectations; several dimensions need attention.")
	default:
		parts = append(parts, "Significant quality issues detected; review recommended.")
	}
	if len(card.CriticalIssues) > 0 {
		parts = append(parts, fmt.Sprintf("Critical issues found in: %s.",
			strings.Join(card.CriticalIssues, ", ")))
	}
	return strings.Join(parts, " ")
}

// subjectDisplay turns a subject identifier into display form: separators
// become spaces and each word is capitalized.
func subjectDisplay(subject string) string {
	words := strings.FieldsFunc(subject, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
