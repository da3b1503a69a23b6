package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dshills/skilljudge/internal/benchmark"
	"github.com/dshills/skilljudge/internal/config"
	"github.com/dshills/skilljudge/internal/engine"
	"github.com/dshills/skilljudge/internal/gate"
	"github.com/dshills/skilljudge/internal/llm"
	"github.com/dshills/skilljudge/internal/render"
	"github.com/dshills/skilljudge/internal/schema"
	"github.com/dshills/skilljudge/internal/store"
)

// errBlocked signals the hook exit path: the evaluation completed and the
// decision was block.
var errBlocked = errors.New("blocked")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errBlocked) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skilljudge",
		Short:         "Deterministic quality scoring for skill and agent executions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	base := defaultBase()
	root.PersistentFlags().String("scores-dir", filepath.Join(base, "scores"), "directory for persisted scorecards")
	root.PersistentFlags().String("rubric-dir", filepath.Join(base, "rubrics"), "directory holding rubric markdown files")
	root.PersistentFlags().String("config", filepath.Join(base, "config.json"), "path to the judge configuration file")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newHookCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newBenchmarkCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func defaultBase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skilljudge"
	}
	return filepath.Join(home, ".skilljudge")
}

func commonOptions(cmd *cobra.Command) engine.Options {
	scoresDir, _ := cmd.Flags().GetString("scores-dir")
	rubricDir, _ := cmd.Flags().GetString("rubric-dir")
	configPath, _ := cmd.Flags().GetString("config")
	return engine.Options{
		ScoresDir:  scoresDir,
		RubricDir:  rubricDir,
		ConfigPath: configPath,
	}
}

func newScoreCmd() *cobra.Command {
	var (
		subject        string
		transcriptPath string
		rubricName     string
		format         string
		review         bool
		reviewProvider string
		reviewModel    string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Evaluate a transcript and render the scorecard",
		Long: `Score runs a manual evaluation of an execution transcript against the
subject's rubric. Manual evaluations are always persisted and never block.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commonOptions(cmd)
			opts.Subject = subject
			opts.TranscriptPath = transcriptPath
			opts.RubricOverride = rubricName
			opts.Mode = gate.ModeManual

			if review {
				opts.Reviewer = func(card *schema.Scorecard, transcript []string) (*schema.Review, error) {
					return llm.Review(cmd.Context(), card, transcript, llm.Options{
						Provider: reviewProvider,
						Model:    reviewModel,
					})
				}
			}

			res, err := engine.Evaluate(opts)
			if err != nil {
				return err
			}
			for _, w := range res.Card.Warnings {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
			}

			switch format {
			case "json":
				b, err := render.RenderJSON(res.Card)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			case "markdown":
				fmt.Fprint(cmd.OutOrStdout(), render.RenderMarkdown(res.Card))
			case "text":
				prior, err := loadPrior(opts.ScoresDir, subject, res.SavedPath)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.RenderText(res.Card, prior))
			default:
				return fmt.Errorf("unknown format %q (want text, json, or markdown)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "skill or agent being evaluated")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "path to the execution transcript")
	cmd.Flags().StringVar(&rubricName, "rubric", "", "explicit rubric name (must exist in the rubric dir)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, or markdown")
	cmd.Flags().BoolVar(&review, "review", false, "append an advisory model review to the scorecard")
	cmd.Flags().StringVar(&reviewProvider, "review-provider", "", "review backend: anthropic (default), openai, or google")
	cmd.Flags().StringVar(&reviewModel, "review-model", "claude-sonnet-4-6", "model used for the advisory review")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

// hookDecision is the structured reason emitted on the hook's stderr when an
// evaluation blocks.
type hookDecision struct {
	Outcome            string   `json:"outcome"`
	Composite          float64  `json:"composite"`
	Grade              string   `json:"grade"`
	Threshold          float64  `json:"threshold"`
	CriticalDimensions []string `json:"critical_dimensions,omitempty"`
	Reason             string   `json:"reason"`
}

func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Automatic lifecycle evaluation (reads the hook payload from stdin)",
		Long: `Hook reads a JSON payload from stdin, evaluates the referenced transcript,
and signals the decision through the exit code: 0 pass, 2 block. Any
scoring-infrastructure failure fails open with exit 0 so a judging outage
never blocks the surrounding workflow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: hook payload unreadable: %v\n", err)
				return nil
			}

			opts := commonOptions(cmd)
			opts.Subject = hookField(payload, "subject", "skill", "skill_name")
			opts.TranscriptPath = hookField(payload, "transcript", "transcript_path")
			opts.Mode = gate.ModeAutomatic

			res, err := engine.Evaluate(opts)
			switch {
			case errors.Is(err, engine.ErrSubjectUndetected):
				fmt.Fprintln(os.Stderr, "Warning: subject undetected; evaluation skipped")
				return nil
			case errors.Is(err, engine.ErrDisabled):
				return nil
			case err != nil:
				// Fail open: a judging failure must never block the workflow.
				fmt.Fprintf(os.Stderr, "Warning: evaluation failed open: %v\n", err)
				return nil
			}

			if res.Decision.Outcome == schema.OutcomeBlock {
				b, _ := json.Marshal(hookDecision{
					Outcome:            string(res.Decision.Outcome),
					Composite:          res.Decision.Composite,
					Grade:              res.Decision.Grade,
					Threshold:          res.Decision.Threshold,
					CriticalDimensions: res.Decision.CriticalDimensions,
					Reason:             res.Decision.Reason,
				})
				fmt.Fprintln(os.Stderr, string(b))
				return errBlocked
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scored %.1f (%s): %s\n",
				res.Card.Composite, res.Card.Grade, res.Decision.Reason)
			return nil
		},
	}
}

// hookField returns the first string value among the named payload fields.
func hookField(payload []byte, fields ...string) string {
	for _, f := range fields {
		if v := gjson.GetBytes(payload, f); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func newReportCmd() *cobra.Command {
	var (
		subject string
		lastN   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "View persisted scorecards, trends, and historical averages",
		RunE: func(cmd *cobra.Command, args []string) error {
			scoresDir, _ := cmd.Flags().GetString("scores-dir")
			st := &store.Store{Dir: scoresDir}

			var paths []string
			var err error
			if subject != "" {
				paths, err = st.List(subject)
			} else {
				paths, err = st.ListAll()
			}
			if err != nil {
				return err
			}

			// Newest first from the store; keep the newest N.
			if lastN > 0 && len(paths) > lastN {
				paths = paths[:lastN]
			}
			var cards []*schema.Scorecard
			for _, p := range paths {
				card, err := st.Load(p)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: skipped corrupt record %s: %v\n", p, err)
					continue
				}
				cards = append(cards, card)
			}
			if len(cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scorecards found.")
				return nil
			}

			averages := render.ComputeAverages(cards)
			if asJSON {
				out := struct {
					Scores   []*schema.Scorecard `json:"scores"`
					Averages render.Averages     `json:"averages"`
				}{cards, averages}
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			for i, card := range cards {
				fmt.Fprintln(cmd.OutOrStdout(), render.RenderText(card, cards[i+1:]))
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.RenderAverages(averages))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "filter by subject")
	cmd.Flags().IntVar(&lastN, "last", 0, "show only the newest N scorecards")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	return cmd
}

func newBenchmarkCmd() *cobra.Command {
	var (
		subject      string
		standardsDir string
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare a subject's history against benchmark standards",
		RunE: func(cmd *cobra.Command, args []string) error {
			scoresDir, _ := cmd.Flags().GetString("scores-dir")
			st := &store.Store{Dir: scoresDir}
			paths, err := st.List(subject)
			if err != nil {
				return err
			}
			var cards []*schema.Scorecard
			for _, p := range paths {
				card, err := st.Load(p)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: skipped corrupt record %s: %v\n", p, err)
					continue
				}
				cards = append(cards, card)
			}

			std := benchmark.LoadStandards(standardsDir)
			rep := benchmark.Compare(subject, cards, std)
			if asJSON {
				b, err := json.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), rep.RenderText())
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject to benchmark")
	cmd.Flags().StringVar(&standardsDir, "standards-dir", "", "directory holding benchmark-standards.md")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the judge configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			b, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "always <subject>",
		Short: "Always auto-judge the subject (removes it from the never list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(cmd, func(cfg config.Config) config.Config {
				return cfg.WithAlways(args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "never <subject>",
		Short: "Never auto-judge the subject (removes it from the always list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(cmd, func(cfg config.Config) config.Config {
				return cfg.WithNever(args[0])
			})
		},
	})

	return cmd
}

// editConfig applies fn to the loaded config and rewrites the file whole.
func editConfig(cmd *cobra.Command, fn func(config.Config) config.Config) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return config.Save(path, fn(cfg))
}

// loadPrior loads the subject's earlier scorecards, newest first, excluding
// the record just written.
func loadPrior(scoresDir, subject, exclude string) ([]*schema.Scorecard, error) {
	st := &store.Store{Dir: scoresDir}
	paths, err := st.List(subject)
	if err != nil {
		return nil, err
	}
	var cards []*schema.Scorecard
	for _, p := range paths {
		if p == exclude {
			continue
		}
		card, err := st.Load(p)
		if err != nil {
			continue
		}
		cards = append(cards, card)
	}
	return cards, nil
}
