package config

import (
	"fmt"

	"github.com/moritzg809/eateateat/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the SQLite database and migrates all models.
func InitDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("config: connect database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.Enrichment{},
		&models.PlaceDetails{},
		&models.Embedding{},
		&models.SearchQuery{},
		&models.SearchCache{},
		&models.SearchResult{},
	)
	if err != nil {
		return nil, fmt.Errorf("config: migrate database: %w", err)
	}
	return db, nil
}
