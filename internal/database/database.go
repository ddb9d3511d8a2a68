package database

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Initialize opens the gorm connection pool and applies any pending schema
// migrations before returning. Unlike the teacher's manual column probing,
// schema changes live as versioned files under migrations/ and are applied
// through golang-migrate.
func Initialize(databaseURL string, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrateUp(sqlDB); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("database initialized")
	return db, nil
}

// migrateUp reuses the pool's already-open *sql.DB rather than parsing
// databaseURL a second time into golang-migrate's own DSN form.
func migrateUp(sqlDB *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	driver, err := mysql.WithInstance(sqlDB, &mysql.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
