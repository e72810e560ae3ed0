package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes the migrations AutoMigrate cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	// Debtor lookups by name during the identity backfill
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_borclular_file_ad
		ON borclular(file_id, ad)
	`).Error; err != nil {
		return err
	}

	// Results by query type, for the per-type endpoints
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_borclu_sorgular_tip
		ON borclu_sorgular(sorgu_tipi)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_query_logs_time
		ON query_logs(query_time)
	`).Error; err != nil {
		return err
	}

	return nil
}
