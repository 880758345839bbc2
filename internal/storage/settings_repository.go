package storage

import (
	"errors"
	"sync"

	"tg-gcbot/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository handles database operations for per-chat Settings.
// It keeps a read-through cache keyed by chat id; every write goes
// through Save, which refreshes the cache entry synchronously.
type SettingsRepository struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[int64]*models.Settings
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{
		db:    db,
		cache: make(map[int64]*models.Settings),
	}
}

// MigrateTable ensures the Settings table exists with the right schema
func (r *SettingsRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Settings{})
}

// GetOrCreate fetches the chat's settings row, inserting a default row
// if none exists yet. Safe to call repeatedly for the same chat.
func (r *SettingsRepository) GetOrCreate(chatID int64) (*models.Settings, error) {
	r.mu.RLock()
	cached, ok := r.cache[chatID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var settings models.Settings
	err := r.db.Where("chat_id = ?", chatID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.Settings{ChatID: chatID}
		if createErr := r.db.Create(&settings).Error; createErr != nil {
			// A concurrent first touch may have inserted the row; the
			// unique index on chat_id guarantees at most one exists.
			if fetchErr := r.db.Where("chat_id = ?", chatID).First(&settings).Error; fetchErr != nil {
				return nil, createErr
			}
		}
	} else if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[chatID] = &settings
	r.mu.Unlock()

	return &settings, nil
}

// Save persists the settings row and refreshes the cache entry
func (r *SettingsRepository) Save(settings *models.Settings) error {
	if err := r.db.Save(settings).Error; err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[settings.ChatID] = settings
	r.mu.Unlock()

	return nil
}
