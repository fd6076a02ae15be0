package postgres

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/migrations"
	"github.com/networknext/portal/pkg/errors"
)

// migrator is the subset of *migrate.Migrate used here.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(v int) error
	Close() (error, error)
}

// newMigrate builds a migrate instance. Replaced in tests.
var newMigrate = func(cfg config.DatabaseConfig) (migrator, error) {
	dbURL := migrationURL(cfg)
	if cfg.MigrationPath != "" {
		return migrate.New(sourceURL(cfg.MigrationPath), dbURL)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, dbURL)
}

// Migrator applies the user profile schema. The embedded migrations are used
// unless a migration path is configured.
type Migrator struct {
	cfg    config.DatabaseConfig
	logger logging.Logger
}

// NewMigrator returns a Migrator for the configured database.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) *Migrator {
	return &Migrator{cfg: cfg, logger: log}
}

// Up applies every pending migration. No pending migrations is not an error.
func (m *Migrator) Up() error {
	return m.run(func(mg migrator) error {
		if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
			version, _, _ := mg.Version()
			return errors.Wrap(err, errors.ErrCodeDatabaseError,
				fmt.Sprintf("failed to run migrations (current version: %d)", version))
		}
		version, dirty, err := mg.Version()
		if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
			m.logger.Warn("failed to read migration version", logging.Err(err))
		}
		m.logger.Info("database migrations completed",
			logging.Int64("version", int64(version)),
			logging.Bool("dirty", dirty),
		)
		return nil
	})
}

// Rollback reverts the given number of migrations.
func (m *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam(fmt.Sprintf("steps must be greater than 0, got %d", steps))
	}
	return m.run(func(mg migrator) error {
		if err := mg.Steps(-steps); err != nil {
			if stderrors.Is(err, migrate.ErrNoChange) {
				return errors.New(errors.ErrCodeConflict, "no migrations to roll back")
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to roll back %d step(s)", steps))
		}
		return nil
	})
}

// Status reports the applied version and the dirty flag. A database with no
// applied migrations reports version 0.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	err = m.run(func(mg migrator) error {
		var verr error
		version, dirty, verr = mg.Version()
		if verr != nil {
			if stderrors.Is(verr, migrate.ErrNilVersion) {
				version, dirty = 0, false
				return nil
			}
			return errors.Wrap(verr, errors.ErrCodeDatabaseError, "failed to read migration version")
		}
		return nil
	})
	return version, dirty, err
}

// Force sets the recorded version without running migrations. Used to clear a
// dirty state after a manual fix.
func (m *Migrator) Force(version int) error {
	return m.run(func(mg migrator) error {
		if err := mg.Force(version); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to force version %d", version))
		}
		return nil
	})
}

func (m *Migrator) run(fn func(migrator) error) error {
	mg, err := newMigrate(m.cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer func() {
		if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
			m.logger.Warn("failed to close migrate instance",
				logging.Any("source_error", srcErr),
				logging.Any("database_error", dbErr),
			)
		}
	}()
	return fn(mg)
}

// migrationURL rewrites the connection DSN for the golang-migrate pgx/v5 driver.
func migrationURL(cfg config.DatabaseConfig) string {
	return "pgx5" + strings.TrimPrefix(buildDSN(cfg), "postgres")
}

func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
