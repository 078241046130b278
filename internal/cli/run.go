package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Mode        string
	ContextVals []string // key=value external bindings
	Inputs      []string // attribute-path=value operator inputs
	SaveAs      string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and execute a DSL program",
		Long: `Parse, compile, and execute a DSL source file as one session. External
bindings supplied with --bind pre-seed the symbol table; UUID-shaped values
bind as entity ids, everything else as strings. Operator values for
attribute references come from --input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "",
		"execution mode: best-effort or atomic (default from config)")
	cmd.Flags().StringArrayVar(&opts.ContextVals, "bind", nil,
		"external context binding, key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil,
		"operator attribute value, attribute-path=value (repeatable)")
	cmd.Flags().StringVar(&opts.SaveAs, "save-as", "",
		"also store the source under this name (versioned)")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	userInput, err := parsePairs(opts.Inputs)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse --input", err)
	}
	external, err := parseBindings(opts.ContextVals)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse --bind", err)
	}

	app, err := LoadApp(opts.RootOptions, userInput)
	if err != nil {
		return err
	}
	defer app.Close()

	eng := app.Engine
	if opts.Mode != "" {
		switch opts.Mode {
		case string(engine.ModeBestEffort), string(engine.ModeAtomic):
			eng = engine.New(app.Store, app.Registry, app.Logger,
				engine.WithMode(engine.Mode(opts.Mode)),
				engine.WithMaxSteps(app.Config.Engine.MaxSteps),
				engine.WithBinder(app.Binder))
		default:
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q", opts.Mode))
		}
	}

	keys := make([]string, 0, len(external))
	for k := range external {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	copts := &CompileOptions{RootOptions: opts.RootOptions, ContextKeys: keys}
	plan, problems := compileFile(path, copts, app.Registry, app.Dict)
	if plan == nil && len(problems) == 0 {
		return WrapExitError(ExitCommandError, "read source", fmt.Errorf("%s", path))
	}
	if len(problems) > 0 {
		return outputCompileErrors(formatter, problems)
	}

	report, execErr := eng.ExecutePlan(cmd.Context(), plan, external)
	if report == nil {
		return WrapExitError(ExitCommandError, "execute", execErr)
	}

	if opts.SaveAs != "" && execErr == nil && report.Failed == 0 {
		src, rerr := os.ReadFile(path)
		if rerr != nil {
			return WrapExitError(ExitCommandError, "read source", rerr)
		}
		version, err := app.Store.SaveSource(cmd.Context(), opts.SaveAs, string(src))
		if err != nil {
			return WrapExitError(ExitCommandError, "save source", err)
		}
		_ = app.Store.MarkCompiled(cmd.Context(), opts.SaveAs, version)
		formatter.VerboseLog("saved source as %s v%d", opts.SaveAs, version)
	}

	return outputReport(formatter, report, execErr)
}

func outputReport(formatter *OutputFormatter, report *engine.SessionReport, execErr error) error {
	if formatter.Format == "json" {
		type stepOut struct {
			Index  int    `json:"index"`
			Verb   string `json:"verb"`
			Status string `json:"status"`
			Result string `json:"result,omitempty"`
			Error  string `json:"error,omitempty"`
		}
		steps := make([]stepOut, len(report.Steps))
		for i, s := range report.Steps {
			so := stepOut{Index: s.Index, Verb: s.Verb, Status: string(s.Status), Error: s.Err}
			if s.Result != nil {
				so.Result = s.Result.Render()
			}
			steps[i] = so
		}
		payload := map[string]any{
			"session_id": report.SessionID,
			"mode":       string(report.Mode),
			"resolved":   report.Resolved,
			"stored":     report.Stored,
			"failed":     report.Failed,
			"steps":      steps,
		}
		if execErr != nil {
			_ = formatter.JSONErrors([]Problem{{Code: "EXEC", Message: execErr.Error()}})
			return NewExitError(ExitFailure, "execution failed")
		}
		if err := formatter.JSON(payload); err != nil {
			return err
		}
		if report.Failed > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", report.Failed))
		}
		return nil
	}

	formatter.Textf("session %s (%s): %d stored, %d failed, %d injection(s) resolved\n",
		report.SessionID, report.Mode, report.Stored, report.Failed, report.Resolved)
	for _, s := range report.Steps {
		switch s.Status {
		case engine.StepOK:
			line := fmt.Sprintf("  ✓ [%d] %s", s.Index, s.Verb)
			if s.Result != nil {
				line += " = " + s.Result.Render()
			}
			formatter.Textf("%s\n", line)
		default:
			formatter.Textf("  ✗ [%d] %s: %s\n", s.Index, s.Verb, s.Err)
		}
	}
	if execErr != nil {
		formatter.Textf("✗ session aborted: %v\n", execErr)
		return NewExitError(ExitFailure, "execution failed")
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", report.Failed))
	}
	return nil
}

// parseBindings turns key=value flags into AST values. UUID-shaped values
// become entity references, everything else a string.
func parseBindings(pairs []string) (map[string]ast.Value, error) {
	raw, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ast.Value, len(raw))
	for k, v := range raw {
		if id, err := uuid.Parse(v); err == nil {
			out[k] = ast.RawUUID(id)
			continue
		}
		out[k] = ast.String(v)
	}
	return out, nil
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
