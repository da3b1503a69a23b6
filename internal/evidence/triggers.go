package evidence

import (
	"fmt"
	"strings"
)

// Detected is one rubric descriptor whose trigger fired, with the transcript
// evidence that fired it.
type Detected struct {
	Name     string
	Evidence string
}

// trigger binds descriptor keywords to a signal predicate. A rubric red-flag
// or bonus descriptor is matched to the first trigger whose keyword appears
// in the descriptor text; descriptors matching no trigger never fire.
type trigger struct {
	keywords []string
	check    func(s *Set) (bool, string)
}

var flagTriggers = []trigger{
	{[]string{"secret", "credential"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigSecret)
		return sig.Count > 0, citeCount(sig, "credential-like token")
	}},
	{[]string{"destructive", "irreversible"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigUnconfirmed)
		return sig.Count > 0, citeCount(sig, "unconfirmed destructive command")
	}},
	{[]string{"unresolved", "error"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigUnresolved)
		return sig.Count > 0, citeCount(sig, "unresolved error")
	}},
	{[]string{"placeholder", "stub"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigPlaceholder)
		return sig.Count > 0, citeCount(sig, "placeholder marker")
	}},
	{[]string{"skipped", "deviation", "process"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigDeviation)
		return sig.Count > 0, citeCount(sig, "deviation marker")
	}},
}

var bonusTriggers = []trigger{
	{[]string{"verification", "verified"}, func(s *Set) (bool, string) {
		sig := s.Signal(SigVerification)
		return sig.Count > 0, citeCount(sig, "verification marker")
	}},
	{[]string{"mirrored", "requirement", "requested"}, func(s *Set) (bool, string) {
		total, met := s.Count(SigRequirement), s.Count(SigRequirementOK)
		if total == 0 || met < total {
			return false, ""
		}
		return true, fmt.Sprintf("%d/%d requested items mirrored in output", met, total)
	}},
	{[]string{"retries", "retry"}, func(s *Set) (bool, string) {
		if s.Count(SigRetry) == 0 && s.Count(SigToolCall) > 0 {
			return true, fmt.Sprintf("%d tool invocations, zero retries", s.Count(SigToolCall))
		}
		return false, ""
	}},
	{[]string{"concise"}, func(s *Set) (bool, string) {
		if s.Lines <= 200 && s.Count(SigToolCall) <= 10 {
			return true, fmt.Sprintf("%d lines, %d tool invocations", s.Lines, s.Count(SigToolCall))
		}
		return false, ""
	}},
}

// MatchFlags returns the rubric red-flag descriptors whose signal is present.
func MatchFlags(descriptors []string, s *Set) []Detected {
	return match(descriptors, flagTriggers, s)
}

// MatchBonuses returns the rubric bonus descriptors whose signal is present.
func MatchBonuses(descriptors []string, s *Set) []Detected {
	return match(descriptors, bonusTriggers, s)
}

func match(descriptors []string, triggers []trigger, s *Set) []Detected {
	var out []Detected
	for _, d := range descriptors {
		lower := strings.ToLower(d)
		for _, tr := range triggers {
			if !containsAny(lower, tr.keywords) {
				continue
			}
			if ok, ev := tr.check(s); ok {
				out = append(out, Detected{Name: d, Evidence: ev})
			}
			break
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func citeCount(sig Signal, what string) string {
	if sig.Count == 0 {
		return ""
	}
	cite := sig.Cite()
	if cite == "" {
		return fmt.Sprintf("%d %s hit(s)", sig.Count, what)
	}
	return fmt.Sprintf("%d %s hit(s), %s", sig.Count, what, cite)
}
