package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqld/internal/sqld"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	URI     string
	Config  string
	Profile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqld CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqld",
		Short: "Run SQL scripts against an embedded SQLite database",
		Long: `sqld executes SQL scripts statement by statement against an embedded
SQLite database, applies versioned migrations and runs scenario tests.

The database is chosen with --uri, or with a profile from a CUE config file
(--config, --profile). Without either, a shared-cache in-memory database is
used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.URI, "uri", "", "database URI (overrides the profile)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "CUE file declaring connection profiles")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile to use from --config")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openTarget resolves the target database, opens it and runs the profile's
// init scripts.
func openTarget(opts *RootOptions) (*sqld.Conn, error) {
	target, err := ResolveTarget(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configuration error", err)
	}

	conn, err := sqld.Open(target.URI)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	slog.Debug("database ready", "uri", target.URI, "profile", target.Profile)

	for i, script := range target.Init {
		s := sqld.NewStream(conn)
		s.Append(script)
		err := s.Exec()
		s.Close()
		if err != nil {
			conn.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("profile %q init script %d failed", target.Profile, i+1), err)
		}
	}
	return conn, nil
}

func closeConn(conn *sqld.Conn) {
	if err := conn.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
