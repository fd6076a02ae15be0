package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/database/postgres"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
)

// Migrator is the subset of postgres.Migrator the migrate commands use.
type Migrator interface {
	Up() error
	Rollback(steps int) error
	Status() (version uint, dirty bool, err error)
	Force(version int) error
}

// MigratorOpener builds a Migrator for the database section.
type MigratorOpener func(cfg config.DatabaseConfig, logger logging.Logger) Migrator

// OpenPostgresMigrator returns the golang-migrate backed migrator.
func OpenPostgresMigrator(cfg config.DatabaseConfig, logger logging.Logger) Migrator {
	return postgres.NewMigrator(cfg, logger)
}

func newMigrateCmd(open MigratorOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the user profile database schema",
	}

	run := func(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return fn(cmd, open(cliCtx.Config.Database, cliCtx.Logger), args)
		}
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			if err := m.Rollback(steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m Migrator, _ []string) error {
				return printStatus(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, m Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				if err := m.Force(v); err != nil {
					return err
				}
				return printStatus(cmd, m)
			}),
		},
	)
	return cmd
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
	return nil
}
