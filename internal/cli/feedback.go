package cli

import (
	"github.com/spf13/cobra"

	"github.com/halcyonfs/obdsl/internal/search"
)

// FeedbackOptions holds flags for the feedback command.
type FeedbackOptions struct {
	*RootOptions
	UserID string
	Global bool
}

// NewFeedbackCommand creates the feedback command.
func NewFeedbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feedback <phrase> <verb>",
		Short: "Confirm a phrase-to-verb mapping",
		Long: `Record that a phrase maps to a verb. The searcher's current candidates
for the phrase are stored as the true alternatives, and the learned index
is rebuilt immediately. Feedback is user-scoped unless --global is set.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedback(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id the feedback belongs to")
	cmd.Flags().BoolVar(&opts.Global, "global", false, "record as a global association")

	return cmd
}

// scoreFor finds the score the confirmed verb actually carried in the
// outcome the operator saw; 0 when the searcher never surfaced it.
func scoreFor(outcome search.Outcome, verb string) float64 {
	for _, c := range outcome.Candidates {
		if c.Verb == verb {
			return c.Score
		}
	}
	return 0
}

func runFeedback(opts *FeedbackOptions, phrase, verb string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if !opts.Global && opts.UserID == "" {
		return NewExitError(ExitCommandError, "feedback needs --user or --global")
	}
	userID := opts.UserID
	if opts.Global {
		userID = ""
	}

	app, err := LoadApp(opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Searcher.Warmup(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "search warmup", err)
	}

	// The outcome the operator would have seen supplies the alternatives.
	outcome, err := app.Searcher.Search(cmd.Context(), phrase, search.Options{Mode: search.ModeEnsemble, UserID: userID})
	if err != nil {
		return WrapExitError(ExitCommandError, "search", err)
	}
	if err := app.Searcher.RecordFeedback(cmd.Context(), phrase, verb, userID, scoreFor(outcome, verb), outcome.Candidates); err != nil {
		return WrapExitError(ExitFailure, "record feedback", err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(map[string]any{
			"phrase":       search.Normalize(phrase),
			"verb":         verb,
			"user":         userID,
			"alternatives": len(outcome.Candidates),
		})
	}
	formatter.Textf("✓ learned %q -> %s\n", search.Normalize(phrase), verb)
	return nil
}
