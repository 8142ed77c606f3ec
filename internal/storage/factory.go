package storage

import (
	"fmt"

	"github.com/overmark/overmark/internal/config"
	"github.com/overmark/overmark/internal/database"
	gormstorage "github.com/overmark/overmark/internal/storage/gorm"
	"github.com/overmark/overmark/internal/storage/memory"
)

// NewStore creates the settings store selected by cfg. For database-backed
// stores the manager is connected here; Postgres may fall back to SQLite.
func NewStore(cfg config.StorageConfig, db *database.Manager) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.New(), nil
	case "sqlite", "postgres":
		if err := db.Connect(cfg); err != nil {
			return nil, err
		}
		return gormstorage.New(db.DB), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
