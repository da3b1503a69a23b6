package history

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/skilljudge/internal/schema"
	"github.com/dshills/skilljudge/internal/store"
)

func cardWithScores(subject string, scores map[schema.Dimension]float64) *schema.Scorecard {
	card := &schema.Scorecard{Subject: subject, Grade: "B"}
	for _, dim := range schema.DimensionOrder {
		card.Dimensions = append(card.Dimensions, schema.DimensionScore{
			Dimension: dim,
			Score:     scores[dim],
		})
	}
	return card
}

func uniformCard(subject string, score float64) *schema.Scorecard {
	scores := make(map[schema.Dimension]float64)
	for _, dim := range schema.DimensionOrder {
		scores[dim] = score
	}
	return cardWithScores(subject, scores)
}

func TestLoadEmptyHistory(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	w, err := Load(st, "fresh-skill")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w.HasHistory() {
		t.Error("empty store reported history")
	}
	if w.Mean != nil || w.StdDev != nil {
		t.Errorf("empty window has stats: mean=%v stddev=%v", w.Mean, w.StdDev)
	}
}

func TestLoadComputesStats(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	for _, score := range []float64{6.0, 8.0} {
		if _, err := st.Save(uniformCard("code-review", score)); err != nil {
			t.Fatal(err)
		}
	}

	w, err := Load(st, "code-review")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Cards) != 2 {
		t.Fatalf("window holds %d cards, want 2", len(w.Cards))
	}
	if got := w.Mean[schema.DimCorrectness]; math.Abs(got-7.0) > 1e-9 {
		t.Errorf("mean = %v, want 7.0", got)
	}
	// Population deviation of {6, 8} is 1.
	if got := w.StdDev[schema.DimCorrectness]; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("stddev = %v, want 1.0", got)
	}
}

func TestSingleRecordHasNoStdDev(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	if _, err := st.Save(uniformCard("code-review", 7.5)); err != nil {
		t.Fatal(err)
	}
	w, err := Load(st, "code-review")
	if err != nil {
		t.Fatal(err)
	}
	if w.Mean[schema.DimSafety] != 7.5 {
		t.Errorf("mean = %v, want 7.5", w.Mean[schema.DimSafety])
	}
	if w.StdDev != nil {
		t.Errorf("one record produced a deviation: %v", w.StdDev)
	}
}

func TestLoadCapsWindow(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	for i := 0; i < WindowSize+3; i++ {
		if _, err := st.Save(uniformCard("busy-skill", 7.0)); err != nil {
			t.Fatal(err)
		}
	}
	w, err := Load(st, "busy-skill")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Cards) != WindowSize {
		t.Errorf("window holds %d cards, want %d", len(w.Cards), WindowSize)
	}
}

func TestLoadSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	st := &store.Store{Dir: dir}
	if _, err := st.Save(uniformCard("code-review", 7.0)); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "code-review-20200101T000000.000000000Z.json")
	if err := os.WriteFile(bad, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Load(st, "code-review")
	if err != nil {
		t.Fatalf("corrupt record made Load fatal: %v", err)
	}
	if len(w.Cards) != 1 {
		t.Errorf("window holds %d cards, want 1", len(w.Cards))
	}
	if len(w.Warnings) != 1 {
		t.Errorf("corrupt record skipped without a warning: %v", w.Warnings)
	}
}

func TestAnomalies(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	// Correctness history of {6, 8}: mean 7, population deviation 1.
	for _, score := range []float64{6.0, 8.0} {
		if _, err := st.Save(uniformCard("code-review", score)); err != nil {
			t.Fatal(err)
		}
	}
	w, err := Load(st, "code-review")
	if err != nil {
		t.Fatal(err)
	}

	within := []schema.DimensionScore{{Dimension: schema.DimCorrectness, Score: 8.5}}
	if got := w.Anomalies(within); got != nil {
		t.Errorf("1.5σ deviation flagged as anomalous: %v", got)
	}

	beyond := []schema.DimensionScore{{Dimension: schema.DimCorrectness, Score: 9.5}}
	if got := w.Anomalies(beyond); len(got) != 1 {
		t.Errorf("2.5σ deviation not flagged: %v", got)
	}
}

func TestAnomaliesSkippedWithThinHistory(t *testing.T) {
	st := &store.Store{Dir: t.TempDir()}
	if _, err := st.Save(uniformCard("code-review", 7.0)); err != nil {
		t.Fatal(err)
	}
	w, err := Load(st, "code-review")
	if err != nil {
		t.Fatal(err)
	}
	current := []schema.DimensionScore{{Dimension: schema.DimCorrectness, Score: 1.0}}
	if got := w.Anomalies(current); got != nil {
		t.Errorf("anomaly check ran with a single historical record: %v", got)
	}
}
