// Package llm provides the optional advisory reviewer: a model-backed second
// opinion on a finished scorecard. The review is strictly informational — it
// never alters a score, flag, grade, or decision, and every failure in this
// package is a warning to the caller, not an evaluation failure.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dshills/skilljudge/internal/render"
	"github.com/dshills/skilljudge/internal/schema"
)

// ErrInvalidModelOutput is returned when both the initial and repair model
// responses fail validation.
var ErrInvalidModelOutput = errors.New("llm: invalid model output after repair attempt")

// maxSuggestions bounds how many reviewer suggestions are kept.
const maxSuggestions = 5

// excerptLines bounds how much transcript is quoted to the reviewer: the
// first and last excerptLines/2 lines.
const excerptLines = 60

// Provider is the interface for model backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call
// site. Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// Options configures a Review call.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Debug       bool
}

// ValidationError records a single validation failure on a model response.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Review sends the finished scorecard and a transcript excerpt to the model
// and returns its advisory review. One repair attempt is made when the first
// response fails validation.
func Review(ctx context.Context, card *schema.Scorecard, transcript []string, opts Options) (*schema.Review, error) {
	provider, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("llm: create provider: %w", err)
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}

	userPrompt, err := buildUserPrompt(card, transcript)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		fmt.Fprintf(os.Stderr, "=== DEBUG: system prompt ===\n%s\n", systemPrompt)
		fmt.Fprintf(os.Stderr, "=== DEBUG: user prompt ===\n%s\n", userPrompt)
	}

	raw, err := provider.Complete(ctx, systemPrompt, userPrompt, opts.MaxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("llm: complete: %w", err)
	}
	review, errs := ValidateResponse(raw, opts.Model)
	if review != nil {
		return review, nil
	}

	// One repair attempt with the invalid response and its errors in context.
	raw2, err := provider.Complete(ctx, systemPrompt, buildRepairPrompt(userPrompt, raw, errs), opts.MaxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("llm: repair complete: %w", err)
	}
	if review, _ := ValidateResponse(raw2, opts.Model); review != nil {
		return review, nil
	}
	return nil, ErrInvalidModelOutput
}

// reviewPayload is the JSON shape the model must produce.
type reviewPayload struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// ValidateResponse parses and validates the raw model response. Markdown
// fences are stripped before parsing. A nil review is returned on parse
// failure or a missing summary.
func ValidateResponse(raw, model string) (*schema.Review, []ValidationError) {
	var errs []ValidationError
	raw = stripMarkdownFences(raw)

	var payload reviewPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		fixed := fixInvalidJSONEscapes(raw)
		if err2 := json.Unmarshal([]byte(fixed), &payload); err2 != nil {
			errs = append(errs, ValidationError{Field: "json_parse", Message: err.Error()})
			return nil, errs
		}
	}
	if strings.TrimSpace(payload.Summary) == "" {
		errs = append(errs, ValidationError{Field: "required_field", Message: "summary is missing"})
		return nil, errs
	}

	suggestions := payload.Suggestions
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	var kept []string
	for _, s := range suggestions {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return &schema.Review{
		Model:       model,
		Summary:     strings.TrimSpace(payload.Summary),
		Suggestions: kept,
	}, nil
}

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences. The content group
// uses `.*?` (not `.+?`) to allow empty bodies inside fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line (no closing fence required).
// Used to strip orphaned opening fences from truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// stripMarkdownFences removes leading/trailing markdown code fences that
// models sometimes wrap around JSON output (e.g., "```json\n...\n```"). If
// only an opening fence is present the opening line is stripped so that the
// JSON content can still be parsed.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// invalidJSONEscapeRe matches a backslash followed by any character that is
// not a valid JSON string escape character. Models sometimes emit regex-style
// sequences (e.g. \d+) unescaped inside JSON strings; the sanitizer converts
// them to properly double-escaped equivalents.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// systemPrompt instructs the model. The review is advisory only, so the
// contract is deliberately small: a summary plus free-text suggestions.
const systemPrompt = `You are an advisory reviewer for automated skill-execution scorecards.

You receive a finished scorecard (already scored by deterministic rules) and
an excerpt of the execution transcript. Your review is informational only: you
cannot change any score, flag, grade, or decision.

Output ONLY valid JSON in this shape. No prose, no markdown, no explanation
outside the JSON:
{
  "summary": "two or three sentences on execution quality",
  "suggestions": ["concrete improvement", "..."]
}

Ground every suggestion in the scorecard or the transcript excerpt. Never
invent transcript content, and never quote anything that looks like a
credential.`

// buildUserPrompt assembles the review request: the scorecard as JSON plus a
// bounded transcript excerpt.
func buildUserPrompt(card *schema.Scorecard, transcript []string) (string, error) {
	cardJSON, err := render.RenderJSON(card)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SCORECARD:\n")
	sb.Write(cardJSON)
	sb.WriteString("\n\nTRANSCRIPT EXCERPT:\n")
	sb.WriteString(Excerpt(transcript, excerptLines))
	sb.WriteString("\n\nProduce the JSON review now.")
	return sb.String(), nil
}

// buildRepairPrompt constructs the repair message. It includes the original
// prompt and the previous invalid response so the model has full context.
func buildRepairPrompt(originalUserPrompt, previousResponse string, errs []ValidationError) string {
	var sb strings.Builder
	sb.WriteString(originalUserPrompt)
	sb.WriteString("\n\nYour previous response was:\n")
	sb.WriteString(previousResponse)
	sb.WriteString("\n\nThat response was invalid. Errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&sb, "  - %s\n", e.Error())
	}
	sb.WriteString("\nPlease output only the corrected JSON. Do not repeat the error.")
	return sb.String()
}

// Excerpt returns up to max transcript lines: the head and tail halves joined
// by an elision marker when the transcript is longer.
func Excerpt(lines []string, max int) string {
	if len(lines) <= max {
		return strings.Join(lines, "\n")
	}
	half := max / 2
	head := lines[:half]
	tail := lines[len(lines)-half:]
	return strings.Join(head, "\n") +
		fmt.Sprintf("\n[... %d lines elided ...]\n", len(lines)-2*half) +
		strings.Join(tail, "\n")
}
