// Package schema defines all canonical data types for the skilljudge scorecard format.
package schema

// Dimension names one of the seven weighted evaluation axes.
type Dimension string

const (
	DimCorrectness   Dimension = "correctness"
	DimCompleteness  Dimension = "completeness"
	DimAdherence     Dimension = "adherence"
	DimActionability Dimension = "actionability"
	DimEfficiency    Dimension = "efficiency"
	DimSafety        Dimension = "safety"
	DimConsistency   Dimension = "consistency"
)

// DimensionOrder is the canonical display and evaluation order.
var DimensionOrder = []Dimension{
	DimCorrectness,
	DimCompleteness,
	DimAdherence,
	DimActionability,
	DimEfficiency,
	DimSafety,
	DimConsistency,
}

// Outcome is the decision gate result for one evaluation.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeBlock Outcome = "block"
)

// DimensionScore is one dimension's evaluated result. Score is in [1.0, 10.0]
// at one-decimal precision; Weight is copied from the rubric at evaluation
// time. Justification must cite the concrete transcript signals that produced
// the score.
type DimensionScore struct {
	Dimension     Dimension `json:"dimension"`
	Score         float64   `json:"score"`
	Weight        float64   `json:"weight"`
	Weighted      float64   `json:"weighted"`
	Justification string    `json:"justification"`
}

// AppliedFlag is one triggered red flag with its deduction amount.
type AppliedFlag struct {
	Name      string  `json:"name"`
	Deduction float64 `json:"deduction"`
	Evidence  string  `json:"evidence,omitempty"`
}

// AppliedBonus is one triggered bonus with its credit amount.
type AppliedBonus struct {
	Name     string  `json:"name"`
	Credit   float64 `json:"credit"`
	Evidence string  `json:"evidence,omitempty"`
}

// Adjustments itemizes every flag and bonus applied to the raw composite.
// Detected counts may exceed the applied list lengths when the per-evaluation
// caps are hit; Note records the capping when that happens.
type Adjustments struct {
	FlagsDetected   int            `json:"flags_detected"`
	Flags           []AppliedFlag  `json:"flags"`
	TotalDeduction  float64        `json:"total_deduction"`
	BonusesDetected int            `json:"bonuses_detected"`
	Bonuses         []AppliedBonus `json:"bonuses"`
	TotalCredit     float64        `json:"total_credit"`
	Note            string         `json:"note,omitempty"`
}

// Decision is the structured pass/block result.
type Decision struct {
	Outcome            Outcome  `json:"outcome"`
	Automatic          bool     `json:"automatic"`
	Threshold          float64  `json:"threshold"`
	Composite          float64  `json:"composite"`
	Grade              string   `json:"grade"`
	CriticalDimensions []string `json:"critical_dimensions,omitempty"`
	Reason             string   `json:"reason"`
}

// Review is the optional advisory model review. It is informational only and
// never contributes to any score, flag, grade, or decision.
type Review struct {
	Model       string   `json:"model"`
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Scorecard is the persisted record of one evaluation. Append-only: a new
// evaluation always creates a new record.
type Scorecard struct {
	Subject         string           `json:"subject"`
	Timestamp       string           `json:"timestamp"`
	Rubric          string           `json:"rubric"`
	Transcript      string           `json:"transcript"`
	TranscriptLines int              `json:"transcript_lines"`
	Dimensions      []DimensionScore `json:"dimensions"`
	RawComposite    float64          `json:"raw_composite"`
	Adjustments     Adjustments      `json:"adjustments"`
	Composite       float64          `json:"composite"`
	Grade           string           `json:"grade"`
	GradeLabel      string           `json:"grade_label"`
	Summary         string           `json:"summary"`
	OneLiner        string           `json:"one_liner"`
	CriticalIssues  []string         `json:"critical_issues,omitempty"`
	Recommendations []string         `json:"recommendations"`
	Anomalous       bool             `json:"anomalous"`
	Warnings        []string         `json:"warnings,omitempty"`
	Review          *Review          `json:"review,omitempty"`
}

// DimensionScoreByName returns the score entry for dim, or nil.
func (s *Scorecard) DimensionScoreByName(dim Dimension) *DimensionScore {
	for i := range s.Dimensions {
		if s.Dimensions[i].Dimension == dim {
			return &s.Dimensions[i]
		}
	}
	return nil
}
