package gormdb

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"medquiz-service/internal/logger"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to driver at dsn and brings the schema up to date.
func Open(driver, dsn, gormLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	gormLogger, levelErr := newGormLogger(gormLevel)
	if levelErr != nil {
		logger.Error("invalid gorm log level", "value", gormLevel, "error", levelErr)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the question tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ExamSet{},
		&Question{},
		&QuestionVote{},
		&QuestionAnswer{},
		&QuestionComment{},
		&QuestionBookmark{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
