// Package sqlstore gives each actor instance its own persistent SQLite-backed
// store (spec §3: "holds a reference to a storage handle (SQL + key-value +
// opaque state)"), adapted from the teacher's process-wide db package
// (server/internal/db/db.go) down to one file-backed database per actor id.
//
// Like the teacher, actorrpc opens SQLite through the modernc pure-Go driver
// (no CGO) and hands the already-open *sql.DB to GORM rather than letting
// GORM's sqlite dialector open a second connection.
package sqlstore

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// modernc pure-Go SQLite driver — registers itself as "sqlite".
	_ "modernc.org/sqlite"
)

// Store is one actor's SQL + key-value storage handle. A single *gorm.DB
// backs both: user-declared tables via AutoMigrate/Raw queries, and the
// framework's own kv table (see kv.go).
type Store struct {
	DB   *gorm.DB
	path string
}

// Config controls how an actor's store is opened.
type Config struct {
	// DataDir is the directory actor database files live under. Each actor
	// gets "<DataDir>/<actorID>.db".
	DataDir string
	Logger  *zap.Logger
	// LogLevel controls GORM's own query logging verbosity, same contract as
	// the teacher's db.Config.LogLevel.
	LogLevel gormlogger.LogLevel
}

// Open returns the Store for actorID, creating the backing file and
// migrating the framework's kv table if this is the first open. SQLite
// supports only one writer at a time, so the connection pool is capped at 1
// — identical to the teacher's sqlDB.SetMaxOpenConns(1) for its sqlite path.
func Open(actorID string, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("sqlstore: logger is required")
	}

	path := filepath.Join(cfg.DataDir, actorID+".db")

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	gdb, err := gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: newZapGORMLogger(cfg.Logger, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: initializing gorm for %s: %w", path, err)
	}

	if err := gdb.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrating kv table for %s: %w", path, err)
	}

	return &Store{DB: gdb, path: path}, nil
}

// Close releases the underlying *sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the backing file path — exposed for diagnostics and tests.
func (s *Store) Path() string { return s.path }

// SQLDB exposes the underlying *sql.DB, for callers (schema introspection)
// that need to run raw PRAGMA statements GORM has no typed wrapper for.
func (s *Store) SQLDB() (*sql.DB, error) {
	return s.DB.DB()
}
