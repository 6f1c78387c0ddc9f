package config

import (
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	dsn := os.Getenv("DB_URL")

	// TranslateError maps driver duplicate-key failures to
	// gorm.ErrDuplicatedKey, which the dispatch path relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("Failed to connect database")
	}

	DB = db
}

// EnsureIndexes creates the constraints AutoMigrate cannot express.
// The partial unique index is the atomic check-and-insert that keeps
// duplicate open attempts out even across overlapping ticks.
func EnsureIndexes() error {
	return DB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_open_attempt_per_rule_customer
		ON contact_attempts (rule_id, customer_id)
		WHERE status IN ('queued', 'pending') AND deleted_at IS NULL
	`).Error
}
