package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/sqld/internal/harness"
	"github.com/roach88/sqld/internal/sqld"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Tx bool // wrap the run in one transaction
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [file|-]...",
		Short: "Execute SQL scripts",
		Long: `Execute SQL scripts and print every result set they produce.

All scripts are concatenated into one statement stream and executed in
order. "-" or no arguments reads the script from stdin. Execution stops at
the first failing statement; with --tx the whole run is rolled back.

Exit codes:
  0 - All statements succeeded
  1 - A statement failed
  2 - Command error (unreadable file, bad config, etc.)

Examples:
  sqld exec schema.sql seed.sql
  echo "select 1;" | sqld exec --uri "file:app.db?mode=rwc"
  sqld exec --tx --profile prod --config sqld.cue fix.sql`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Tx, "tx", false, "run all scripts in one transaction")

	return cmd
}

func runExec(opts *ExecOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if len(args) == 0 {
		if f, ok := cmd.InOrStdin().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return NewExitError(ExitCommandError, "no script given: pass files or pipe SQL on stdin")
		}
		args = []string{"-"}
	}

	scripts := make([]string, 0, len(args))
	for _, arg := range args {
		script, err := readScript(arg, cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read script", err)
		}
		scripts = append(scripts, script)
		out.VerboseLog("loaded %s (%d bytes)", arg, len(script))
	}

	conn, err := openTarget(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	tx := sqld.NewTrans(conn)
	defer tx.Close()
	if opts.Tx {
		if err := tx.Begin(); err != nil {
			return execFailed(out, nil, err)
		}
	}

	s := sqld.NewStream(conn)
	defer s.Close()
	for _, script := range scripts {
		// A newline keeps a trailing line comment from swallowing the next script.
		s.Append(script, "\n")
	}

	sets, err := harness.Collect(s)
	if err != nil {
		return execFailed(out, sets, err)
	}

	if opts.Tx {
		if err := tx.Commit(); err != nil {
			return execFailed(out, sets, err)
		}
	}

	slog.Debug("scripts executed", "scripts", len(scripts), "result_sets", len(sets), "offset", s.Offset())
	return out.ResultSets(sets)
}

// execFailed prints what ran before the failure and the error itself.
func execFailed(out *OutputFormatter, sets []harness.ResultSet, err error) error {
	if out.Format == "json" {
		out.Error(errorCode(err), err.Error(), map[string]any{"results": sets})
	} else {
		if len(sets) > 0 {
			out.ResultSets(sets)
			fmt.Fprintln(out.Writer)
		}
		out.Error(errorCode(err), err.Error(), nil)
	}
	return WrapExitError(ExitFailure, "execution failed", err)
}

func readScript(arg string, stdin io.Reader) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
