package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonfs/obdsl/internal/search"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Mode     string
	UserID   string
	Domain   string
	Limit    int
	Evidence bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <phrase...>",
		Short: "Resolve a free-text phrase to a DSL verb",
		Long: `Run the hybrid verb searcher over a phrase. Fast mode short-circuits on
an exact operator macro; ensemble mode always consults every channel.
Ambiguous results list the true alternatives for confirmation.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(search.ModeFast),
		"search mode: fast or ensemble")
	cmd.Flags().StringVar(&opts.UserID, "user", "",
		"user id scoping the personal learned channel")
	cmd.Flags().StringVar(&opts.Domain, "domain", "",
		"restrict candidates to one verb domain")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0,
		"cap the candidate list (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.Evidence, "evidence", false,
		"show per-candidate channel evidence")

	return cmd
}

func runSearch(opts *SearchOptions, phrase string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var mode search.Mode
	switch opts.Mode {
	case string(search.ModeFast):
		mode = search.ModeFast
	case string(search.ModeEnsemble):
		mode = search.ModeEnsemble
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q", opts.Mode))
	}

	app, err := LoadApp(opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Searcher.Warmup(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "search warmup", err)
	}

	outcome, err := app.Searcher.Search(cmd.Context(), phrase, search.Options{
		Mode:   mode,
		UserID: opts.UserID,
		Domain: opts.Domain,
		Limit:  opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "search", err)
	}

	if formatter.Format == "json" {
		if err := formatter.JSON(outcome); err != nil {
			return err
		}
		if outcome.Decision == search.DecisionNoMatch {
			return NewExitError(ExitFailure, "no match")
		}
		return nil
	}

	switch outcome.Decision {
	case search.DecisionMatched:
		formatter.Textf("✓ %s (%.2f)\n", outcome.Verb, outcome.Score)
	case search.DecisionAmbiguous:
		formatter.Textf("? ambiguous, confirm one of:\n")
		for _, c := range outcome.Candidates {
			formatter.Textf("  %s (%.2f via %s)\n", c.Verb, c.Score, strings.Join(c.Channels, ","))
		}
	case search.DecisionSuggest:
		formatter.Textf("~ did you mean %s? (%.2f)\n", outcome.Verb, outcome.Score)
	default:
		formatter.Textf("✗ no match for %q\n", phrase)
		return NewExitError(ExitFailure, "no match")
	}
	if opts.Evidence {
		for _, c := range outcome.Candidates {
			formatter.Textf("  evidence: %s %.2f [%s]\n", c.Verb, c.Score, strings.Join(c.Channels, ","))
		}
	}
	return nil
}
