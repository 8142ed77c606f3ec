// Package gormstorage implements the settings store on GORM. The same code
// serves SQLite and Postgres; only the connection differs.
package gormstorage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ElementOverride is a user-edited element code.
type ElementOverride struct {
	ID        uint           `gorm:"primarykey"`
	Script    string         `gorm:"size:128;uniqueIndex:idx_script_element"`
	Element   string         `gorm:"size:128;uniqueIndex:idx_script_element"`
	Payload   datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// ScriptState is the persisted enable flag of a script.
type ScriptState struct {
	Script    string `gorm:"primarykey;size:128"`
	Enabled   bool
	UpdatedAt time.Time
}

// Backend is a GORM-backed settings store.
type Backend struct {
	db *gorm.DB
}

// New wraps an open connection. Call Init before use.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Init migrates the settings tables.
func (b *Backend) Init() error {
	if b.db == nil {
		return errors.New("settings db not open")
	}
	if err := b.db.AutoMigrate(&ElementOverride{}, &ScriptState{}); err != nil {
		return fmt.Errorf("failed to migrate settings schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) SaveElementOverride(script, element, code string) error {
	row := ElementOverride{
		Script:  script,
		Element: element,
		Payload: datatypes.JSON(code),
	}
	err := b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "script"}, {Name: "element"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save override %s/%s: %w", script, element, err)
	}
	return nil
}

func (b *Backend) ElementOverrides(script string) (map[string]string, error) {
	var rows []ElementOverride
	if err := b.db.Where("script = ?", script).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load overrides for %s: %w", script, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Element] = string(r.Payload)
	}
	return out, nil
}

func (b *Backend) DeleteElementOverride(script, element string) error {
	err := b.db.Where("script = ? AND element = ?", script, element).Delete(&ElementOverride{}).Error
	if err != nil {
		return fmt.Errorf("delete override %s/%s: %w", script, element, err)
	}
	return nil
}

func (b *Backend) SaveScriptState(script string, enabled bool) error {
	row := ScriptState{Script: script, Enabled: enabled}
	err := b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "script"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save state %s: %w", script, err)
	}
	return nil
}

func (b *Backend) ScriptState(script string) (bool, bool, error) {
	var row ScriptState
	err := b.db.Where("script = ?", script).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("load state %s: %w", script, err)
	}
	return row.Enabled, true, nil
}
