package sqlstore

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/kestrelab/memvault/pkg/errors"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// runMigrations brings the schema up to date using the embedded
// migration files for the given driver.
func runMigrations(db *sqlx.DB, driver string) error {
	var (
		dbDriver database.Driver
		dir      string
		err      error
	)

	switch driver {
	case "sqlite3":
		dbDriver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		dir = "migrations/sqlite"
	case "postgres":
		dbDriver, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
		dir = "migrations/postgres"
	default:
		return fmt.Errorf("unsupported sql driver: %s", driver)
	}
	if err != nil {
		return errors.Wrap(err, "failed to prepare migration driver")
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return errors.Wrap(err, "failed to open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrator")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}
