package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonfs/obdsl/internal/parser"
)

// NewParseCommand creates the parse command: syntax-check a DSL file and
// print its canonical rendering.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a DSL program and print its canonical form",
		Long: `Parse a DSL source file. On success the program is printed in canonical
rendering (stable argument order, normalized literals); on failure every
parse error is reported with its position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}
}

func runParse(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read source", err)
	}

	prog, err := parser.Parse(string(src))
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			if formatter.Format == "json" {
				_ = formatter.JSONErrors([]Problem{{Code: pe.Code, Message: pe.Error()}})
			} else {
				formatter.Textf("✗ %s: %s\n", path, pe.Error())
			}
			return NewExitError(ExitFailure, "parse failed")
		}
		return WrapExitError(ExitCommandError, "parse", err)
	}

	formatter.VerboseLog("parsed %d statement(s) from %s", len(prog), path)

	if formatter.Format == "json" {
		type stmt struct {
			Verb    string `json:"verb"`
			Args    int    `json:"args"`
			Binding string `json:"binding,omitempty"`
		}
		out := make([]stmt, len(prog))
		for i, c := range prog {
			out[i] = stmt{Verb: c.FullVerb(), Args: len(c.Args), Binding: c.Binding}
		}
		return formatter.JSON(map[string]any{"statements": out, "rendered": prog.Render()})
	}

	fmt.Fprint(formatter.Writer, prog.Render())
	return nil
}
