package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSourcesCommand creates the sources command group for versioned DSL
// program storage.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage stored DSL programs",
	}
	cmd.AddCommand(newSourcesSaveCommand(rootOpts))
	cmd.AddCommand(newSourcesListCommand(rootOpts))
	cmd.AddCommand(newSourcesShowCommand(rootOpts))
	return cmd
}

func newSourcesSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "save <name> <file>",
		Short:         "Store a program version",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			src, err := os.ReadFile(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "read source", err)
			}
			app, err := LoadApp(rootOpts, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			version, err := app.Store.SaveSource(cmd.Context(), args[0], string(src))
			if err != nil {
				return WrapExitError(ExitFailure, "save source", err)
			}
			if formatter.Format == "json" {
				return formatter.JSON(map[string]any{"name": args[0], "version": version})
			}
			formatter.Textf("✓ saved %s v%d\n", args[0], version)
			return nil
		},
	}
}

func newSourcesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored programs (latest versions)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			app, err := LoadApp(rootOpts, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			sources, err := app.Store.ListSources(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "list sources", err)
			}
			if formatter.Format == "json" {
				type row struct {
					Name     string `json:"name"`
					Version  int    `json:"version"`
					Compiled bool   `json:"compiled"`
				}
				rows := make([]row, len(sources))
				for i, s := range sources {
					rows[i] = row{Name: s.Name, Version: s.Version, Compiled: s.Compiled}
				}
				return formatter.JSON(rows)
			}
			for _, s := range sources {
				mark := " "
				if s.Compiled {
					mark = "✓"
				}
				formatter.Textf("%s %s v%d\n", mark, s.Name, s.Version)
			}
			return nil
		},
	}
}

func newSourcesShowCommand(rootOpts *RootOptions) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:           "show <name>",
		Short:         "Print a stored program",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			app, err := LoadApp(rootOpts, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			src, err := app.Store.GetSource(cmd.Context(), args[0], version)
			if err != nil {
				return WrapExitError(ExitFailure, "get source", err)
			}
			if formatter.Format == "json" {
				return formatter.JSON(map[string]any{
					"name":    src.Name,
					"version": src.Version,
					"source":  src.Source,
				})
			}
			formatter.Textf("%s v%s\n\n%s", src.Name, strconv.Itoa(src.Version), src.Source)
			if len(src.Source) > 0 && src.Source[len(src.Source)-1] != '\n' {
				fmt.Fprintln(formatter.Writer)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "version to show (0 = latest)")
	return cmd
}
