// Package db opens the tracker database and manages its schema.
package db

import (
	"fmt"

	"github.com/sysfr3ak/archive-sys/internal/config"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model the tracker persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Job{},
		&models.StageHistory{},
		&models.ActivityLog{},
		&models.Photo{},
		&models.BackupLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every tracker table. History and audit go with them.
func DropAll(db *gorm.DB) error {
	all := AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return nil
}

// SeedUsers upserts users from configuration by username. Seeding is
// bootstrap work and is not audited.
func SeedUsers(db *gorm.DB, users []config.UserConfig) error {
	for _, uc := range users {
		u := models.User{
			Username: uc.Username,
			FullName: uc.FullName,
			Role:     uc.Role,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "role"}),
		}).Create(&u)
		if result.Error != nil {
			return fmt.Errorf("db: seed user %q: %w", uc.Username, result.Error)
		}
	}
	return nil
}
