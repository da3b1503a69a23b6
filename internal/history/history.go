// Package history loads a subject's prior scorecards and derives the rolling
// statistics used by consistency scoring and anomaly flagging. The window is
// recomputed from persisted records on every evaluation, never cached.
package history

import (
	"fmt"
	"math"

	"github.com/dshills/skilljudge/internal/schema"
	"github.com/dshills/skilljudge/internal/store"
)

// WindowSize is the maximum number of prior scorecards considered.
const WindowSize = 10

// anomalySigma is the deviation threshold, in standard deviations, beyond
// which a current dimension score flags the evaluation as anomalous.
const anomalySigma = 2.0

// Window holds the most recent prior scorecards for one subject, newest
// first, with per-dimension mean and population standard deviation.
type Window struct {
	Subject string
	Cards   []*schema.Scorecard
	Mean    map[schema.Dimension]float64
	StdDev  map[schema.Dimension]float64
	// Warnings records corrupt records that were skipped; they are excluded
	// from the window, never silently swallowed.
	Warnings []string
}

// HasHistory reports whether any prior scorecard exists.
func (w *Window) HasHistory() bool { return len(w.Cards) > 0 }

// Load builds the history window for subject. A record that fails to parse is
// non-fatal: it is dropped from the window with a warning and loading
// continues.
func Load(st *store.Store, subject string) (*Window, error) {
	paths, err := st.List(subject)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	w := &Window{Subject: subject}
	for _, path := range paths {
		if len(w.Cards) == WindowSize {
			break
		}
		card, err := st.Load(path)
		if err != nil {
			w.Warnings = append(w.Warnings, fmt.Sprintf("history: skipped corrupt record %s: %v", path, err))
			continue
		}
		w.Cards = append(w.Cards, card)
	}
	w.computeStats()
	return w, nil
}

// computeStats fills Mean always and StdDev only when the window holds at
// least two points; with fewer the deviation is undefined and left absent
// rather than approximated with zero.
func (w *Window) computeStats() {
	if len(w.Cards) == 0 {
		return
	}
	w.Mean = make(map[schema.Dimension]float64, len(schema.DimensionOrder))
	for _, dim := range schema.DimensionOrder {
		var sum float64
		n := 0
		for _, card := range w.Cards {
			if ds := card.DimensionScoreByName(dim); ds != nil {
				sum += ds.Score
				n++
			}
		}
		if n > 0 {
			w.Mean[dim] = sum / float64(n)
		}
	}
	if len(w.Cards) < 2 {
		return
	}
	w.StdDev = make(map[schema.Dimension]float64, len(schema.DimensionOrder))
	for _, dim := range schema.DimensionOrder {
		mean, ok := w.Mean[dim]
		if !ok {
			continue
		}
		var sq float64
		n := 0
		for _, card := range w.Cards {
			if ds := card.DimensionScoreByName(dim); ds != nil {
				d := ds.Score - mean
				sq += d * d
				n++
			}
		}
		if n >= 2 {
			w.StdDev[dim] = math.Sqrt(sq / float64(n)) // population, not sample
		}
	}
}

// Anomalies returns the dimensions whose current score deviates from the
// historical mean by more than anomalySigma standard deviations. With fewer
// than two historical points the check is skipped entirely.
func (w *Window) Anomalies(current []schema.DimensionScore) []string {
	if w.StdDev == nil {
		return nil
	}
	var out []string
	for _, ds := range current {
		sd, ok := w.StdDev[ds.Dimension]
		if !ok || sd == 0 {
			continue
		}
		if math.Abs(ds.Score-w.Mean[ds.Dimension]) > anomalySigma*sd {
			out = append(out, fmt.Sprintf("%s: score %.1f deviates more than %.0fσ from historical mean %.2f (σ=%.2f)",
				ds.Dimension, ds.Score, anomalySigma, w.Mean[ds.Dimension], sd))
		}
	}
	return out
}
