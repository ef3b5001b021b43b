package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

var log = logger.GetLogger() // Instancia logger para el pakg

//go:embed sql/*.sql
var files embed.FS

// RunMigrations applies every pending embedded migration to the database at dbURL.
func RunMigrations(dbURL string) error {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("migrations: failed to open embedded source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("migrations: failed to init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn("RunMigrations: failed to close migrate", zap.NamedError("sourceErr", srcErr), zap.NamedError("dbErr", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up failed: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		log.Info("RunMigrations: schema is up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}
