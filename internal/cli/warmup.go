package cli

import (
	"github.com/spf13/cobra"
)

// NewWarmupCommand creates the warmup command.
func NewWarmupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Seed the search indexes",
		Long: `Embed every invocation phrase from the verb schemas into the pattern
store and build the learned index from recorded feedback. Run after
editing schemas; searches against a cold store fall back to empty
semantic and learned channels.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWarmup(rootOpts, cmd)
		},
	}
}

func runWarmup(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	app, err := LoadApp(opts, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Searcher.Warmup(cmd.Context()); err != nil {
		return WrapExitError(ExitFailure, "warmup", err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(map[string]any{
			"verbs":     app.Registry.Len(),
			"vec_index": app.Store.VecAvailable(),
		})
	}
	formatter.Textf("✓ warmed search indexes for %d verb(s)\n", app.Registry.Len())
	if !app.Store.VecAvailable() {
		formatter.Textf("  (vec0 unavailable, semantic channel uses brute-force scan)\n")
	}
	return nil
}
