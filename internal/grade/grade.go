// Package grade maps a final composite score to a letter grade using a fixed
// table of half-open intervals. No LLM or heuristic input is involved.
package grade

// band is one interval of the grade table. The interval is [Min, next Min)
// except the top band, which is closed on both ends.
type band struct {
	Min    float64
	Letter string
	Label  string
}

// table is ordered highest first. Lookup walks the table and returns the
// first band whose lower bound the composite meets, so each bound is
// inclusive below and exclusive above: 9.00 is "A", 8.99 is "A-".
var table = []band{
	{9.5, "A+", "Excellent"},
	{9.0, "A", "Excellent"},
	{8.5, "A-", "Excellent"},
	{8.0, "B+", "Good"},
	{7.5, "B", "Good"},
	{7.0, "B-", "Good"},
	{6.5, "C+", "Acceptable"},
	{6.0, "C", "Acceptable"},
	{5.5, "C-", "Acceptable"},
	{5.0, "D+", "Poor"},
	{4.5, "D", "Poor"},
	{3.9, "D-", "Poor"},
	{0.0, "F", "Critical"},
}

// Map returns the letter grade and label for composite. Composites are
// expected in [1.0, 10.0]; anything below the D- bound maps to F.
func Map(composite float64) (letter, label string) {
	for _, b := range table {
		if composite >= b.Min {
			return b.Letter, b.Label
		}
	}
	return "F", "Critical"
}

// Ordinal returns the rank of a letter grade, A+ = 0 descending to F = 12.
// Unknown grades return -1. Used to compare grades across evaluations.
func Ordinal(letter string) int {
	for i, b := range table {
		if b.Letter == letter {
			return i
		}
	}
	return -1
}
