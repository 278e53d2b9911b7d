package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.L().Info("database connection established")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs automatic migrations for all models against the given handle.
// Tests use it with an in-memory sqlite database.
func Migrate(db *gorm.DB) error {
	ledgerModels := []interface{}{
		&models.Account{},
		&models.CategoryState{},
		&models.Transaction{},
		&models.ReferralEdge{},
		&models.ReferralStats{},
		&models.Withdrawal{},
		&models.DailyStats{},
	}

	for _, model := range ledgerModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	logging.L().Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
