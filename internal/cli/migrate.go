package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sqld/internal/migrate"
)

// MigrateResult is the outcome of a migrate run.
type MigrateResult struct {
	From    int `json:"from"`
	To      int `json:"to"`
	Applied int `json:"applied"`
}

func (r MigrateResult) String() string {
	if r.Applied == 0 {
		return fmt.Sprintf("database is up to date at version %d", r.To)
	}
	return fmt.Sprintf("migrated from version %d to %d (%d applied)", r.From, r.To, r.Applied)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <dir>",
		Short: "Apply versioned migrations",
		Long: `Apply the NNNN_name.sql migrations in a directory.

The applied version is kept in PRAGMA user_version. Each pending migration
runs in its own transaction; a failing migration is rolled back and the ones
before it stay applied.

Examples:
  sqld migrate ./migrations --uri "file:app.db?mode=rwc"
  sqld migrate ./migrations --config sqld.cue --profile prod`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runMigrate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		out.Error(ErrCodeNotFound, fmt.Sprintf("migrations directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("migrations directory not found: %s", dir))
	}

	migrations, err := migrate.Load(os.DirFS(dir), ".")
	if err != nil {
		out.Error(ErrCodeMigrate, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load migrations", err)
	}
	out.VerboseLog("found %d migrations in %s", len(migrations), dir)

	conn, err := openTarget(opts)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	from, err := migrate.Current(conn)
	if err != nil {
		out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read schema version", err)
	}

	to, err := migrate.Apply(conn, migrations)
	if err != nil {
		out.Error(ErrCodeMigrate, err.Error(), MigrateResult{From: from, To: to, Applied: countBetween(migrations, from, to)})
		return WrapExitError(ExitFailure, "migration failed", err)
	}

	return out.Success(MigrateResult{From: from, To: to, Applied: countBetween(migrations, from, to)})
}

// countBetween counts migrations with from < version <= to.
func countBetween(migrations []migrate.Migration, from, to int) int {
	n := 0
	for _, m := range migrations {
		if m.Version > from && m.Version <= to {
			n++
		}
	}
	return n
}
