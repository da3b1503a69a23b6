//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/skilljudge/internal/llm"
	"github.com/dshills/skilljudge/internal/schema"
)

// reviewMockResponse is the canned advisory review.
const reviewMockResponse = `{
  "summary": "Solid execution with room to tighten completeness.",
  "suggestions": ["Trace each stated requirement to an explicit outcome."]
}`

// mockProvider returns successive responses from a list.
type mockProvider struct {
	responses []string
	idx       int
}

func (m *mockProvider) Complete(ctx context.Context, system, user string, maxTokens int, temp float64) (string, error) {
	if m.idx >= len(m.responses) {
		return "", fmt.Errorf("mock: no more responses")
	}
	r := m.responses[m.idx]
	m.idx++
	return r, nil
}

func injectMock(t *testing.T, responses []string) {
	t.Helper()
	orig := llm.NewProvider
	llm.NewProvider = func(providerName, model string) (llm.Provider, error) {
		return &mockProvider{responses: responses}, nil
	}
	t.Cleanup(func() { llm.NewProvider = orig })
}

// judgeDirs carves one temp dir into the three locations every command needs.
type judgeDirs struct {
	scores string
	rubric string
	config string
}

func newJudgeDirs(t *testing.T) judgeDirs {
	t.Helper()
	base := t.TempDir()
	return judgeDirs{
		scores: filepath.Join(base, "scores"),
		rubric: filepath.Join(base, "rubrics"),
		config: filepath.Join(base, "config.json"),
	}
}

func (d judgeDirs) args(rest ...string) []string {
	return append([]string{
		rest[0],
		"--scores-dir", d.scores,
		"--rubric-dir", d.rubric,
		"--config", d.config,
	}, rest[1:]...)
}

func writeTranscript(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func cleanTranscript(t *testing.T) string {
	t.Helper()
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = fmt.Sprintf("walking item %d of the plan", i+1)
	}
	return writeTranscript(t, lines)
}

func messyTranscript(t *testing.T) string {
	t.Helper()
	return writeTranscript(t, []string{
		"error: the build failed with an exception",
		"TODO finish the rest",
		"set the endpoint to <YOUR_TOKEN> before shipping",
		"retrying the command",
		"$ rm -rf /data",
		"export API_KEY=sk-abcdefghij1234567890",
		"instead of running tests, skipping step two",
	})
}

// run executes the CLI with the given args and returns stdout and the error.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	if stdin != "" {
		root.SetIn(strings.NewReader(stdin))
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIntegration_ScoreCleanTranscript(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)

	out, err := run(t, "", dirs.args("score", "--subject", "code-review", "--transcript", transcript)...)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.Contains(out, "SKILLJUDGE SCORECARD") {
		t.Errorf("expected boxed scorecard, got:\n%s", out)
	}
	if !strings.Contains(out, "Code Review") {
		t.Errorf("expected display subject in output, got:\n%s", out)
	}

	entries, err := os.ReadDir(dirs.scores)
	if err != nil {
		t.Fatalf("read scores dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 persisted scorecard, got %d", len(entries))
	}
}

func TestIntegration_ScoreJSONFormat(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)

	out, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", transcript, "--format", "json")...)
	if err != nil {
		t.Fatalf("score --format json: %v", err)
	}
	var card schema.Scorecard
	if err := json.Unmarshal([]byte(out), &card); err != nil {
		t.Fatalf("parse scorecard JSON: %v", err)
	}
	if card.Subject != "deploy" {
		t.Errorf("subject: got %q, want deploy", card.Subject)
	}
	if len(card.Dimensions) != 7 {
		t.Errorf("dimensions: got %d, want 7", len(card.Dimensions))
	}
	if card.Composite < 8.0 {
		t.Errorf("clean transcript composite: got %.2f, want >= 8.0", card.Composite)
	}
}

func TestIntegration_ScoreNeverBlocks(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := messyTranscript(t)

	_, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", transcript, "--format", "json")...)
	if err != nil {
		t.Fatalf("manual score must not fail on a low composite: %v", err)
	}
}

func TestIntegration_ScoreWithReview(t *testing.T) {
	injectMock(t, []string{reviewMockResponse})
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)

	out, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", transcript, "--format", "json", "--review")...)
	if err != nil {
		t.Fatalf("score --review: %v", err)
	}
	var card schema.Scorecard
	if err := json.Unmarshal([]byte(out), &card); err != nil {
		t.Fatalf("parse scorecard JSON: %v", err)
	}
	if card.Review == nil {
		t.Fatal("expected advisory review on card")
	}
	if card.Review.Summary == "" {
		t.Error("expected non-empty review summary")
	}
}

func TestIntegration_ScoreMissingTranscript(t *testing.T) {
	dirs := newJudgeDirs(t)
	_, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", filepath.Join(t.TempDir(), "nope.txt"))...)
	if err == nil {
		t.Fatal("expected error for missing transcript")
	}
}

func TestIntegration_HookPass(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)
	payload := fmt.Sprintf(`{"subject":"deploy","transcript":%q}`, transcript)

	out, err := run(t, payload, dirs.args("hook")...)
	if err != nil {
		t.Fatalf("hook on clean transcript: %v", err)
	}
	if !strings.Contains(out, "scored") {
		t.Errorf("expected pass annotation, got:\n%s", out)
	}
}

func TestIntegration_HookBlock(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := messyTranscript(t)
	payload := fmt.Sprintf(`{"skill":"deploy","transcript_path":%q}`, transcript)

	_, err := run(t, payload, dirs.args("hook")...)
	if !errors.Is(err, errBlocked) {
		t.Fatalf("expected block sentinel, got %v", err)
	}
}

func TestIntegration_HookFailsOpen(t *testing.T) {
	dirs := newJudgeDirs(t)

	// Missing transcript, undetectable subject, garbage payload: all exit 0.
	for _, payload := range []string{
		fmt.Sprintf(`{"subject":"deploy","transcript":%q}`, filepath.Join(t.TempDir(), "nope.txt")),
		`{"transcript":"/tmp/whatever.txt"}`,
		`not json at all`,
	} {
		if _, err := run(t, payload, dirs.args("hook")...); err != nil {
			t.Errorf("payload %q: hook must fail open, got %v", payload, err)
		}
	}
}

func TestIntegration_ConfigNeverSkipsHook(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := messyTranscript(t)

	if _, err := run(t, "", dirs.args("config", "never", "deploy")...); err != nil {
		t.Fatalf("config never: %v", err)
	}
	payload := fmt.Sprintf(`{"subject":"deploy","transcript":%q}`, transcript)
	if _, err := run(t, payload, dirs.args("hook")...); err != nil {
		t.Fatalf("never-listed subject must pass, got %v", err)
	}
}

func TestIntegration_ConfigShow(t *testing.T) {
	dirs := newJudgeDirs(t)
	if _, err := run(t, "", dirs.args("config", "always", "deploy")...); err != nil {
		t.Fatalf("config always: %v", err)
	}
	out, err := run(t, "", dirs.args("config", "show")...)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "deploy") {
		t.Errorf("expected always-listed subject in config show, got:\n%s", out)
	}
}

func TestIntegration_Report(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)
	for i := 0; i < 2; i++ {
		if _, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", transcript, "--format", "json")...); err != nil {
			t.Fatalf("score %d: %v", i, err)
		}
	}

	out, err := run(t, "", dirs.args("report", "--subject", "deploy")...)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "HISTORICAL AVERAGES") {
		t.Errorf("expected averages section, got:\n%s", out)
	}

	out, err = run(t, "", dirs.args("report", "--subject", "deploy", "--last", "1", "--json")...)
	if err != nil {
		t.Fatalf("report --json: %v", err)
	}
	var parsed struct {
		Scores []schema.Scorecard `json:"scores"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("parse report JSON: %v", err)
	}
	if len(parsed.Scores) != 1 {
		t.Errorf("with --last 1: got %d scores, want 1", len(parsed.Scores))
	}
}

func TestIntegration_ReportEmpty(t *testing.T) {
	dirs := newJudgeDirs(t)
	out, err := run(t, "", dirs.args("report")...)
	if err != nil {
		t.Fatalf("report on empty store: %v", err)
	}
	if !strings.Contains(out, "No scorecards found.") {
		t.Errorf("expected empty-store message, got:\n%s", out)
	}
}

func TestIntegration_Benchmark(t *testing.T) {
	dirs := newJudgeDirs(t)
	transcript := cleanTranscript(t)
	if _, err := run(t, "", dirs.args("score", "--subject", "deploy", "--transcript", transcript, "--format", "json")...); err != nil {
		t.Fatalf("score: %v", err)
	}

	out, err := run(t, "", dirs.args("benchmark", "--subject", "deploy")...)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if !strings.Contains(out, "BENCHMARK COMPARISON") {
		t.Errorf("expected benchmark header, got:\n%s", out)
	}
}
