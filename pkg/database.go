package pkg

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Saidabdi38/exam-site/internal/config"
	"github.com/Saidabdi38/exam-site/internal/models"
)

// InitDatabase opens the PostgreSQL connection and migrates the schema.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.Environment == "development" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		// TranslateError maps driver errors to gorm sentinels, which the
		// repositories rely on for duplicate-key detection.
		TranslateError: true,
		// Frozen attempt question rows must survive pool deletions, so the
		// bank relations cannot carry enforced foreign keys.
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := MigrateSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

// MigrateSchema runs auto-migration for all persisted models.
func MigrateSchema(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Exam{},
		&models.Question{},
		&models.Choice{},
		&models.ResitPermission{},
		&models.Subject{},
		&models.BankQuestion{},
		&models.BankChoice{},
		&models.Attempt{},
		&models.AttemptQuestion{},
		&models.Answer{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
