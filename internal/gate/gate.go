// Package gate decides pass or block for a finished scorecard. Blocking is
// exclusively a property of automatic evaluation: a manually invoked
// evaluation never blocks regardless of threshold.
package gate

import (
	"fmt"
	"strings"

	"github.com/dshills/skilljudge/internal/config"
	"github.com/dshills/skilljudge/internal/schema"
)

// Mode distinguishes how the evaluation was invoked.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutomatic Mode = "automatic"
)

// Decide applies the decision rules to a finished scorecard.
//
// Rules (in order of precedence):
//  1. Manual invocation → pass.
//  2. Subject in the never-auto-judge list → pass.
//  3. Final composite below the auto-judge threshold → block.
//  4. block_on_critical set and any dimension scored below 5.0 → block.
//  5. Otherwise → pass.
func Decide(card *schema.Scorecard, cfg config.Config, mode Mode) schema.Decision {
	d := schema.Decision{
		Outcome:            schema.OutcomePass,
		Automatic:          mode == ModeAutomatic,
		Threshold:          cfg.AutoJudge.Threshold,
		Composite:          card.Composite,
		Grade:              card.Grade,
		CriticalDimensions: append([]string(nil), card.CriticalIssues...),
	}

	if mode != ModeAutomatic {
		d.Reason = "manual evaluation; blocking not applicable"
		return d
	}
	if cfg.InNever(card.Subject) {
		d.Reason = fmt.Sprintf("subject %q is in the never-auto-judge list", card.Subject)
		return d
	}
	if card.Composite < cfg.AutoJudge.Threshold {
		d.Outcome = schema.OutcomeBlock
		d.Reason = blockReason(d)
		return d
	}
	if cfg.AutoJudge.BlockOnCritical && len(card.CriticalIssues) > 0 {
		d.Outcome = schema.OutcomeBlock
		d.Reason = fmt.Sprintf("composite %.1f (%s) passes threshold %.1f but critical dimensions block: %s",
			d.Composite, d.Grade, d.Threshold, strings.Join(d.CriticalDimensions, ", "))
		return d
	}
	d.Reason = fmt.Sprintf("composite %.1f (%s) meets threshold %.1f", d.Composite, d.Grade, d.Threshold)
	return d
}

// blockReason formats the structured block reason: triggering composite,
// grade, and critical dimensions.
func blockReason(d schema.Decision) string {
	reason := fmt.Sprintf("composite %.1f (%s) below threshold %.1f", d.Composite, d.Grade, d.Threshold)
	if len(d.CriticalDimensions) > 0 {
		reason += fmt.Sprintf("; critical dimensions: %s", strings.Join(d.CriticalDimensions, ", "))
	}
	return reason
}
