package rubric

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/skilljudge/internal/schema"
)

// rubricMarkdown builds a minimal seven-dimension rubric document with the
// given weights, in canonical dimension order.
func rubricMarkdown(weights []float64) string {
	var sb strings.Builder
	sb.WriteString("# Test Rubric\n\n## Dimensions\n\n")
	for i, name := range schema.DimensionOrder {
		fmt.Fprintf(&sb, "### %s (weight: %.2f)\n\n", name, weights[i])
		fmt.Fprintf(&sb, "Measures %s.\n\n", name)
		for _, band := range []string{"9-10", "7-8", "5-6", "3-4", "1-2"} {
			fmt.Fprintf(&sb, "- %s: band text for %s\n", band, band)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Red Flags\n\n- unredacted secret or credential\n- destructive command without confirmation\n\n")
	sb.WriteString("## Bonuses\n\n- explicit verification step\n")
	return sb.String()
}

var evenWeights = []float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.10, 0.05}

func writeRubric(t *testing.T, dir, name string, weights []float64) {
	t.Helper()
	path := filepath.Join(dir, name+".md")
	if err := os.WriteFile(path, []byte(rubricMarkdown(weights)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParse(t *testing.T) {
	r, err := Parse(strings.NewReader(rubricMarkdown(evenWeights)), "test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(r.Dimensions) != 7 {
		t.Fatalf("got %d dimensions, want 7", len(r.Dimensions))
	}
	corr := r.Dimension(schema.DimCorrectness)
	if corr == nil {
		t.Fatal("correctness dimension missing")
	}
	if corr.Weight != 0.25 {
		t.Errorf("correctness weight = %v, want 0.25", corr.Weight)
	}
	if len(corr.Bands) != 5 {
		t.Errorf("correctness bands = %d, want 5", len(corr.Bands))
	}
	if corr.Bands[0].Range != "9-10" {
		t.Errorf("first band range = %q, want 9-10", corr.Bands[0].Range)
	}
	if corr.Description == "" {
		t.Error("correctness description empty")
	}
	if len(r.RedFlags) != 2 || len(r.Bonuses) != 1 {
		t.Errorf("flags/bonuses = %d/%d, want 2/1", len(r.RedFlags), len(r.Bonuses))
	}
}

func TestValidateWeightSum(t *testing.T) {
	bad := []float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.05, 0.05} // sums to 0.95
	r, err := Parse(strings.NewReader(rubricMarkdown(bad)), "bad")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(r); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(sum=0.95) err = %v, want ErrInvalid", err)
	}

	good, err := Parse(strings.NewReader(rubricMarkdown(evenWeights)), "good")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(good); err != nil {
		t.Errorf("Validate(sum=1.0) err = %v, want nil", err)
	}
}

func TestValidateMissingDimension(t *testing.T) {
	doc := "## Dimensions\n\n### correctness (weight: 1.0)\n\n- 9-10: fine\n"
	r, err := Parse(strings.NewReader(doc), "partial")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(r); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(one dimension) err = %v, want ErrInvalid", err)
	}
}

func TestResolveOverride(t *testing.T) {
	dir := t.TempDir()
	writeRubric(t, dir, "special", evenWeights)
	rv := Resolver{Dir: dir}

	r, err := rv.Resolve("anything", "special")
	if err != nil {
		t.Fatalf("Resolve override: %v", err)
	}
	if r.ID != "special" {
		t.Errorf("ID = %q, want special", r.ID)
	}

	if _, err := rv.Resolve("anything", "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing override err = %v, want ErrNotFound", err)
	}
}

func TestResolveExactThenPrefixThenDefault(t *testing.T) {
	dir := t.TempDir()
	writeRubric(t, dir, "code-review", evenWeights)
	rv := Resolver{Dir: dir}

	r, err := rv.Resolve("code-review", "")
	if err != nil {
		t.Fatalf("exact: %v", err)
	}
	if r.ID != "code-review" {
		t.Errorf("exact ID = %q", r.ID)
	}

	r, err = rv.Resolve("code-review-v2", "")
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	if r.ID != "code-review" {
		t.Errorf("prefix ID = %q, want code-review", r.ID)
	}

	r, err = rv.Resolve("totally-unrelated", "")
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if r.ID != "default" {
		t.Errorf("fallback ID = %q, want default", r.ID)
	}
}

func TestResolveConfiguredDefault(t *testing.T) {
	dir := t.TempDir()
	writeRubric(t, dir, "strict", evenWeights)
	rv := Resolver{Dir: dir, DefaultName: "strict"}

	r, err := rv.Resolve("totally-unrelated", "")
	if err != nil {
		t.Fatalf("configured default: %v", err)
	}
	if r.ID != "strict" {
		t.Errorf("ID = %q, want strict", r.ID)
	}

	// Subject and override matches still outrank the configured default.
	writeRubric(t, dir, "code-review", evenWeights)
	r, err = rv.Resolve("code-review", "")
	if err != nil {
		t.Fatalf("exact over configured default: %v", err)
	}
	if r.ID != "code-review" {
		t.Errorf("ID = %q, want code-review", r.ID)
	}

	// An absent configured name falls through to the builtin.
	rv = Resolver{Dir: dir, DefaultName: "missing"}
	r, err = rv.Resolve("totally-unrelated", "")
	if err != nil {
		t.Fatalf("absent configured default: %v", err)
	}
	if r.ID != "default" {
		t.Errorf("ID = %q, want default", r.ID)
	}
}

func TestResolveMalformedConfiguredDefaultAborts(t *testing.T) {
	dir := t.TempDir()
	bad := []float64{0.5, 0.2, 0.15, 0.15, 0.10, 0.10, 0.05}
	writeRubric(t, dir, "strict", bad)
	rv := Resolver{Dir: dir, DefaultName: "strict"}

	if _, err := rv.Resolve("totally-unrelated", ""); err == nil {
		t.Fatal("expected malformed configured default to abort")
	}
}

func TestResolveMalformedExactAborts(t *testing.T) {
	dir := t.TempDir()
	bad := []float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.05, 0.05}
	writeRubric(t, dir, "deploy", bad)
	rv := Resolver{Dir: dir}

	if _, err := rv.Resolve("deploy", ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("malformed exact match err = %v, want ErrInvalid", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeRubric(t, dir, "code-review", evenWeights)
	rv := Resolver{Dir: dir}

	a, err := rv.Resolve("code-review", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := rv.Resolve("code-review", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Dimensions) != len(b.Dimensions) {
		t.Fatal("dimension counts differ between resolves")
	}
	for i := range a.Dimensions {
		if a.Dimensions[i].Weight != b.Dimensions[i].Weight {
			t.Errorf("weight[%d] differs: %v vs %v", i, a.Dimensions[i].Weight, b.Dimensions[i].Weight)
		}
		if a.Dimensions[i].Bands[0].Text != b.Dimensions[i].Bands[0].Text {
			t.Errorf("band text[%d] differs", i)
		}
	}
}

func TestDefaultValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("builtin default invalid: %v", err)
	}
	// Default returns a copy: mutating it must not leak into later calls.
	d := Default()
	d.Dimensions[0].Weight = 0.99
	if Default().Dimensions[0].Weight == 0.99 {
		t.Error("Default() returned shared mutable state")
	}
}

func TestWithWeights(t *testing.T) {
	r, err := Default().WithWeights(map[string]float64{
		"correctness": 0.30,
		"consistency": 0.0,
	})
	if err != nil {
		t.Fatalf("WithWeights: %v", err)
	}
	if got := r.Dimension(schema.DimCorrectness).Weight; got != 0.30 {
		t.Errorf("correctness = %v, want 0.30", got)
	}

	if _, err := Default().WithWeights(map[string]float64{"correctness": 0.9}); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad override err = %v, want ErrInvalid", err)
	}
}
