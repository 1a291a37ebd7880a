package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mbolis/pozo-survey/log"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var journalSchema embed.FS

// migrateDB brings the journal schema to the latest version.
func migrateDB(db *sql.DB) error {
	src, err := iofs.New(journalSchema, "migrations")
	if err != nil {
		return errors.Wrap(err, "schema source")
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "schema target")
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return errors.Wrap(err, "migrator")
	}

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		// journal already up to date
	case err != nil:
		return errors.Wrap(err, "up")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "version")
	}
	log.Debugf("database.migrate: schema version %d (dirty=%v)", version, dirty)
	return nil
}
