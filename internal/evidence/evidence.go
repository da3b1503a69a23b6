// Package evidence scans a transcript for the signals each scoring dimension
// consumes. Every signal carries the transcript line numbers that produced it
// so that dimension justifications can cite literal locations.
package evidence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/skilljudge/internal/schema"
	"github.com/dshills/skilljudge/internal/transcript"
)

// Signal name constants. Each names one detectable condition.
const (
	SigError         = "error"
	SigUnresolved    = "unresolved_error"
	SigHallucination = "hallucination"
	SigIncomplete    = "incomplete"
	SigFollowUp      = "follow_up"
	SigDeviation     = "deviation"
	SigToolCall      = "tool_call"
	SigRetry         = "retry"
	SigDestructive   = "destructive"
	SigUnconfirmed   = "unconfirmed_destructive"
	SigRiskyFlag     = "risky_flag"
	SigSecret        = "secret"
	SigPlaceholder   = "placeholder"
	SigFileAction    = "file_action"
	SigCodeFence     = "code_fence"
	SigVerification  = "verification"
	SigRequirement   = "requirement"
	SigRequirementOK = "requirement_met"
)

// maxCitedMatches bounds how many literal matches a signal retains. The count
// is always exact; only the citations are truncated.
const maxCitedMatches = 5

// Match is one literal hit, with its 1-indexed transcript line.
type Match struct {
	Line int
	Text string
}

// Signal is one detected condition: a total count plus cited matches.
type Signal struct {
	Name    string
	Count   int
	Matches []Match
}

// Cite formats the signal's first location for a justification string.
func (s Signal) Cite() string {
	if len(s.Matches) == 0 {
		return ""
	}
	return fmt.Sprintf("first at line %d", s.Matches[0].Line)
}

// Bundle is the evidence handed to one dimension's scorer.
type Bundle struct {
	Dimension schema.Dimension
	Signals   []Signal
}

// Count returns the named signal's count, zero when absent.
func (b Bundle) Count(name string) int {
	for _, s := range b.Signals {
		if s.Name == name {
			return s.Count
		}
	}
	return 0
}

// Signal returns the named signal; the zero Signal when absent.
func (b Bundle) Signal(name string) Signal {
	for _, s := range b.Signals {
		if s.Name == name {
			return s
		}
	}
	return Signal{Name: name}
}

// Set is the full extraction result: the per-dimension bundles plus a flat
// signal index used by red-flag and bonus trigger matching.
type Set struct {
	Lines   int
	bundles map[schema.Dimension]Bundle
	signals map[string]Signal
}

// Bundle returns the evidence bundle for dim.
func (s *Set) Bundle(dim schema.Dimension) Bundle {
	return s.bundles[dim]
}

// Signal returns the named signal across the whole transcript.
func (s *Set) Signal(name string) Signal {
	return s.signals[name]
}

// Count returns the named signal's transcript-wide count.
func (s *Set) Count(name string) int {
	return s.signals[name].Count
}

// extractorFunc produces one dimension's bundle. Extractors are pure: same
// transcript in, same bundle out. Consistency has no extractor because its
// evidence is historical, not textual.
type extractorFunc func(t *transcript.Transcript) Bundle

var extractors = map[schema.Dimension]extractorFunc{
	schema.DimCorrectness:   extractCorrectness,
	schema.DimCompleteness:  extractCompleteness,
	schema.DimAdherence:     extractAdherence,
	schema.DimActionability: extractActionability,
	schema.DimEfficiency:    extractEfficiency,
	schema.DimSafety:        extractSafety,
}

// Extract runs every dimension extractor over the transcript. It never fails:
// a transcript with none of the expected markers simply yields empty signals.
func Extract(t *transcript.Transcript) *Set {
	set := &Set{
		Lines:   len(t.Lines),
		bundles: make(map[schema.Dimension]Bundle, len(extractors)),
		signals: make(map[string]Signal),
	}
	for dim, fn := range extractors {
		b := fn(t)
		set.bundles[dim] = b
		for _, sig := range b.Signals {
			// Identical signal names across bundles carry identical data.
			set.signals[sig.Name] = sig
		}
	}
	return set
}

// scan counts re matches across all lines, recording cited matches.
func scan(t *transcript.Transcript, re *regexp.Regexp, name string) Signal {
	sig := Signal{Name: name}
	for i, line := range t.Lines {
		n := len(re.FindAllStringIndex(line, -1))
		if n == 0 {
			continue
		}
		sig.Count += n
		if len(sig.Matches) < maxCitedMatches {
			sig.Matches = append(sig.Matches, Match{Line: i + 1, Text: truncate(line, 120)})
		}
	}
	return sig
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func extractCorrectness(t *transcript.Transcript) Bundle {
	errs := scan(t, errorRe, SigError)
	hall := scan(t, hallucinationRe, SigHallucination)

	// An error is unresolved when no resolution marker appears at or after the
	// last error line.
	unresolved := Signal{Name: SigUnresolved}
	if errs.Count > 0 {
		lastErr := 0
		for i, line := range t.Lines {
			if errorRe.MatchString(line) {
				lastErr = i
			}
		}
		resolved := false
		for _, line := range t.Lines[lastErr:] {
			if resolutionRe.MatchString(line) {
				resolved = true
				break
			}
		}
		if !resolved {
			unresolved.Count = 1
			unresolved.Matches = []Match{{Line: lastErr + 1, Text: truncate(t.Lines[lastErr], 120)}}
		}
	}
	return Bundle{Dimension: schema.DimCorrectness, Signals: []Signal{errs, unresolved, hall}}
}

func extractCompleteness(t *transcript.Transcript) Bundle {
	inc := scan(t, incompleteRe, SigIncomplete)
	total, met := requirementTrace(t)
	return Bundle{Dimension: schema.DimCompleteness, Signals: []Signal{inc, total, met}}
}

func extractAdherence(t *transcript.Transcript) Bundle {
	dev := scan(t, deviationRe, SigDeviation)
	return Bundle{Dimension: schema.DimAdherence, Signals: []Signal{dev}}
}

func extractActionability(t *transcript.Transcript) Bundle {
	fences := Signal{Name: SigCodeFence}
	for i, line := range t.Lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences.Count++
			if len(fences.Matches) < maxCitedMatches {
				fences.Matches = append(fences.Matches, Match{Line: i + 1, Text: truncate(line, 120)})
			}
		}
	}
	actions := scan(t, fileActionRe, SigFileAction)
	holders := scan(t, placeholderRe, SigPlaceholder)
	follow := scan(t, followUpRe, SigFollowUp)
	verify := scan(t, verificationRe, SigVerification)
	return Bundle{Dimension: schema.DimActionability,
		Signals: []Signal{fences, actions, holders, follow, verify}}
}

func extractEfficiency(t *transcript.Transcript) Bundle {
	tools := scan(t, toolCallRe, SigToolCall)
	retries := scan(t, retryRe, SigRetry)
	reqs, _ := requirementTrace(t)
	return Bundle{Dimension: schema.DimEfficiency, Signals: []Signal{tools, retries, reqs}}
}

func extractSafety(t *transcript.Transcript) Bundle {
	destructive := scan(t, destructiveRe, SigDestructive)
	risky := scan(t, riskyFlagRe, SigRiskyFlag)

	// A destructive action counts as unconfirmed unless a confirmation marker
	// appears on the same line or within the five preceding lines.
	unconfirmed := Signal{Name: SigUnconfirmed}
	for i, line := range t.Lines {
		if !destructiveRe.MatchString(line) {
			continue
		}
		confirmed := false
		lo := i - 5
		if lo < 0 {
			lo = 0
		}
		for _, prev := range t.Lines[lo : i+1] {
			if confirmationRe.MatchString(prev) {
				confirmed = true
				break
			}
		}
		if !confirmed {
			unconfirmed.Count++
			if len(unconfirmed.Matches) < maxCitedMatches {
				unconfirmed.Matches = append(unconfirmed.Matches, Match{Line: i + 1, Text: truncate(line, 120)})
			}
		}
	}

	secrets := Signal{Name: SigSecret}
	for i, line := range t.Lines {
		hit := secretTokenRe.MatchString(line) ||
			(secretAssignRe.MatchString(line) && !secretSafeRe.MatchString(line))
		if !hit {
			continue
		}
		secrets.Count++
		if len(secrets.Matches) < maxCitedMatches {
			// Never quote the secret itself into the scorecard.
			secrets.Matches = append(secrets.Matches, Match{Line: i + 1, Text: "credential-like token"})
		}
	}

	return Bundle{Dimension: schema.DimSafety,
		Signals: []Signal{destructive, unconfirmed, risky, secrets}}
}

// requirementTrace finds requested items in the prompt region (lines before
// the first tool call, capped at 40) and checks whether each item's keywords
// are mirrored anywhere in the output region after it.
func requirementTrace(t *transcript.Transcript) (total, met Signal) {
	total = Signal{Name: SigRequirement}
	met = Signal{Name: SigRequirementOK}

	promptEnd := len(t.Lines)
	for i, line := range t.Lines {
		if toolCallRe.MatchString(line) {
			promptEnd = i
			break
		}
	}
	if promptEnd > 40 {
		promptEnd = 40
	}

	outputText := strings.ToLower(strings.Join(t.Lines[promptEnd:], "\n"))

	for i := 0; i < promptEnd; i++ {
		line := t.Lines[i]
		if !requirementItemRe.MatchString(line) {
			continue
		}
		total.Count++
		if len(total.Matches) < maxCitedMatches {
			total.Matches = append(total.Matches, Match{Line: i + 1, Text: truncate(line, 120)})
		}
		for _, word := range wordRe.FindAllString(line, -1) {
			if strings.Contains(outputText, strings.ToLower(word)) {
				met.Count++
				if len(met.Matches) < maxCitedMatches {
					met.Matches = append(met.Matches, Match{Line: i + 1, Text: truncate(word, 60)})
				}
				break
			}
		}
	}
	return total, met
}
