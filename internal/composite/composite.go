// Package composite combines dimension scores into the final composite:
// weighted sum, red-flag deductions, bonus credits, and range clamping.
// Pure arithmetic; no transcript access.
package composite

import (
	"fmt"
	"math"

	"github.com/dshills/skilljudge/internal/evidence"
	"github.com/dshills/skilljudge/internal/schema"
)

const (
	// FlagDeduction is subtracted per triggered red flag.
	FlagDeduction = 0.5
	// MaxFlags caps how many triggered flags count. The cap is a deliberate
	// ceiling and is always reported in the adjustment note, never silently
	// truncated.
	MaxFlags = 4
	// BonusCredit is added per triggered bonus.
	BonusCredit = 0.25
	// MaxBonuses caps how many triggered bonuses count.
	MaxBonuses = 4
)

// Weighted computes the raw weighted composite at one-decimal precision.
// A constant score vector yields that constant regardless of the weight
// distribution, because valid rubric weights sum to 1.
func Weighted(scores []schema.DimensionScore) float64 {
	var sum float64
	for _, ds := range scores {
		sum += ds.Score * ds.Weight
	}
	return round1(sum)
}

// Apply deducts triggered red flags, then adds triggered bonuses, clamping to
// [1.0, 10.0] after each stage. Deductions floor at 1.0 even before bonuses
// are applied. The returned Adjustments itemizes every applied flag and bonus
// with its amount.
func Apply(raw float64, flags, bonuses []evidence.Detected) (float64, schema.Adjustments) {
	adj := schema.Adjustments{
		FlagsDetected:   len(flags),
		BonusesDetected: len(bonuses),
	}

	applied := flags
	if len(applied) > MaxFlags {
		applied = applied[:MaxFlags]
		adj.Note = fmt.Sprintf("%d flags detected, capped at %d applied", len(flags), MaxFlags)
	}
	for _, f := range applied {
		adj.Flags = append(adj.Flags, schema.AppliedFlag{
			Name:      f.Name,
			Deduction: FlagDeduction,
			Evidence:  f.Evidence,
		})
	}
	adj.TotalDeduction = round2(FlagDeduction * float64(len(applied)))
	v := clamp(raw - adj.TotalDeduction)

	credited := bonuses
	if len(credited) > MaxBonuses {
		credited = credited[:MaxBonuses]
		note := fmt.Sprintf("%d bonuses detected, capped at %d applied", len(bonuses), MaxBonuses)
		if adj.Note != "" {
			adj.Note += "; " + note
		} else {
			adj.Note = note
		}
	}
	for _, b := range credited {
		adj.Bonuses = append(adj.Bonuses, schema.AppliedBonus{
			Name:     b.Name,
			Credit:   BonusCredit,
			Evidence: b.Evidence,
		})
	}
	adj.TotalCredit = round2(BonusCredit * float64(len(credited)))
	v = clamp(v + adj.TotalCredit)

	return round1(v), adj
}

func clamp(x float64) float64 {
	if x < 1.0 {
		return 1.0
	}
	if x > 10.0 {
		return 10.0
	}
	return x
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
