package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/suzukibelltree/SampleToDoApp/internal/config"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
)

// Open connects to the configured database and brings its schema up to the
// latest generation before returning it.
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	// Using glebarez/sqlite by default, which is a pure Go implementation (no CGO required)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.Gorm(log, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// One writer at a time; concurrent writers only produce SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	version, err := CurrentVersion(db)
	if err != nil {
		return nil, err
	}
	logging.Component(log, "database").WithFields(logrus.Fields{
		"driver":  cfg.Driver,
		"version": version,
	}).Info("database connected and migrated")
	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
