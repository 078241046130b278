package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonfs/obdsl/internal/compiler"
	"github.com/halcyonfs/obdsl/internal/dict"
	"github.com/halcyonfs/obdsl/internal/parser"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	ContextKeys []string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a DSL program to an execution plan",
		Long: `Parse and compile a DSL source file against the loaded verb schemas and
attribute dictionary. Compilation collects every error in one pass rather
than stopping at the first; on success the execution plan is printed with
its injection wiring.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.ContextKeys, "context", nil,
		"external context symbols available to the program (repeatable)")

	return cmd
}

func runCompileCmd(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, d, err := LoadSchema(opts.RootOptions)
	if err != nil {
		return err
	}
	formatter.VerboseLog("loaded %d verb(s), %d attribute(s)", reg.Len(), d.Len())

	plan, errs := compileFile(path, opts, reg, d)
	if plan == nil && len(errs) == 0 {
		return WrapExitError(ExitCommandError, "read source", fmt.Errorf("%s", path))
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.JSON(plan)
	}
	formatter.Textf("✓ compiled %d step(s)\n\n%s", plan.Len(), plan.DebugString())
	return nil
}

// compileFile parses and compiles one source file, returning the plan or
// the full batch of errors (parse errors are wrapped as problems too).
func compileFile(path string, opts *CompileOptions, reg *vocab.Registry, d *dict.Dictionary) (*compiler.ExecutionPlan, []Problem) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	prog, err := parser.Parse(string(src))
	if err != nil {
		code := "E100"
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			code = pe.Code
		}
		return nil, []Problem{{Code: code, Message: err.Error()}}
	}
	var copts []compiler.Option
	if len(opts.ContextKeys) > 0 {
		copts = append(copts, compiler.WithExternalContext(opts.ContextKeys...))
	}
	plan, cerrs := compiler.Compile(prog, reg, d, copts...)
	if len(cerrs) > 0 {
		problems := make([]Problem, len(cerrs))
		for i, ce := range cerrs {
			problems[i] = Problem{Code: ce.Code, Message: ce.Error()}
		}
		return nil, problems
	}
	return plan, nil
}

func outputCompileErrors(formatter *OutputFormatter, problems []Problem) error {
	if formatter.Format == "json" {
		_ = formatter.JSONErrors(problems)
	} else {
		formatter.Textf("✗ compilation failed with %d error(s)\n\n", len(problems))
		for _, p := range problems {
			formatter.Textf("  %s\n", p.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", len(problems)))
}
