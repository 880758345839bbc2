package storage

import (
	"errors"

	"tg-gcbot/internal/models"

	"gorm.io/gorm"
)

// MessageRepository handles database operations for MessageRecord
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// MigrateTable ensures the MessageRecord table exists
func (r *MessageRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.MessageRecord{})
}

// Create inserts a new message record
func (r *MessageRepository) Create(record *models.MessageRecord) error {
	return r.db.Create(record).Error
}

// Save persists changes to an existing message record
func (r *MessageRepository) Save(record *models.MessageRecord) error {
	return r.db.Save(record).Error
}

// Due returns records whose deletion is due at now and that are still
// deletable: scheduled, not yet deleted and within the reachable window.
func (r *MessageRepository) Due(now, horizon int64) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	result := r.db.
		Where("delete_after <= ?", now).
		Where("deleted = ?", false).
		Where("should_delete = ?", true).
		Where("date > ?", horizon).
		Order("delete_after asc").
		Find(&records)
	return records, result.Error
}

// Failed returns the chat's failed, reachable, undeleted records.
// When maxAttempts > 0 only records with at most that many attempts
// qualify.
func (r *MessageRepository) Failed(chatID, horizon int64, maxAttempts int) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	result := r.failedQuery(chatID, horizon, maxAttempts).Find(&records)
	return records, result.Error
}

// CountFailed counts the records the retry path would select
func (r *MessageRepository) CountFailed(chatID, horizon int64, maxAttempts int) (int64, error) {
	var count int64
	result := r.failedQuery(chatID, horizon, maxAttempts).Model(&models.MessageRecord{}).Count(&count)
	return count, result.Error
}

func (r *MessageRepository) failedQuery(chatID, horizon int64, maxAttempts int) *gorm.DB {
	query := r.db.
		Where("chat_id = ?", chatID).
		Where("date > ?", horizon).
		Where("deleted = ?", false).
		Where("delete_failed = ?", true)

	if maxAttempts > 0 {
		query = query.Where("delete_attempt <= ?", maxAttempts)
	}

	return query
}

// CancelPending flips all of the chat's active candidates to cancelled
// in one bulk update and reports how many rows were affected.
func (r *MessageRepository) CancelPending(chatID int64) (int64, error) {
	result := r.db.Model(&models.MessageRecord{}).
		Where("chat_id = ?", chatID).
		Where("deleted = ?", false).
		Where("should_delete = ?", true).
		Updates(map[string]interface{}{"should_delete": false, "delete_cancelled": true})
	return result.RowsAffected, result.Error
}

func (r *MessageRepository) pendingQuery(chatID, horizon int64) *gorm.DB {
	return r.db.
		Where("chat_id = ?", chatID).
		Where("date > ?", horizon).
		Where("deleted = ?", false).
		Where("should_delete = ?", true)
}

// CountPending counts active, reachable, undeleted candidates
func (r *MessageRepository) CountPending(chatID, horizon int64) (int64, error) {
	var count int64
	result := r.pendingQuery(chatID, horizon).Model(&models.MessageRecord{}).Count(&count)
	return count, result.Error
}

// CountUnreachable counts undeleted records past the unreachable horizon
func (r *MessageRepository) CountUnreachable(chatID, horizon int64) (int64, error) {
	var count int64
	result := r.db.Model(&models.MessageRecord{}).
		Where("chat_id = ?", chatID).
		Where("date <= ?", horizon).
		Where("deleted = ?", false).
		Count(&count)
	return count, result.Error
}

// CountCancelled counts reachable, undeleted, explicitly cancelled records
func (r *MessageRepository) CountCancelled(chatID, horizon int64) (int64, error) {
	var count int64
	result := r.db.Model(&models.MessageRecord{}).
		Where("chat_id = ?", chatID).
		Where("date > ?", horizon).
		Where("deleted = ?", false).
		Where("delete_cancelled = ?", true).
		Count(&count)
	return count, result.Error
}

// CountDeleted counts the chat's all-time deleted records
func (r *MessageRepository) CountDeleted(chatID int64) (int64, error) {
	var count int64
	result := r.db.Model(&models.MessageRecord{}).
		Where("chat_id = ?", chatID).
		Where("deleted = ?", true).
		Count(&count)
	return count, result.Error
}

// NextDue returns the earliest-due active record, or nil if none exists
func (r *MessageRepository) NextDue(chatID, horizon int64) (*models.MessageRecord, error) {
	var record models.MessageRecord
	result := r.pendingQuery(chatID, horizon).Order("delete_after asc").First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// RemovalQueue returns the chat's active candidates ordered by due time
func (r *MessageRepository) RemovalQueue(chatID, horizon int64) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	result := r.pendingQuery(chatID, horizon).Order("delete_after asc").Find(&records)
	return records, result.Error
}
