package database

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sgavilanez/planea-api/internal/models"
	pkgLogger "github.com/sgavilanez/planea-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database, retrying with
// exponential backoff while the database comes up (container orchestration
// often starts the API before postgres is ready).
func Connect(databaseURL string) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	var db *gorm.DB

	connect := func() error {
		var err error
		db, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			Logger:                 gormLogger,
			SkipDefaultTransaction: true, // Improve performance
			PrepareStmt:            true, // Cache prepared statements
		})
		if err != nil {
			pkgLogger.Warn("Database not ready, retrying", "error", err)
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.Loan{},
		&models.LoanInstallment{},
		&models.Obligation{},
		&models.BudgetBucket{},
		&models.BudgetContribution{},
		&models.Notification{},
		&models.AuditLog{},
	)
}
