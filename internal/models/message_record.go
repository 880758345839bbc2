package models

import "time"

// MessageRecord tracks one ingested message and its deletion state.
// Records are never removed from the table; Deleted is terminal.
type MessageRecord struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ChatID    int64 `gorm:"index:idx_chat_message"`
	MessageID int   `gorm:"index:idx_chat_message"`

	// Date is the message's origin timestamp in unix seconds. Once it
	// falls behind the unreachable horizon Telegram no longer allows
	// deleting the message.
	Date int64 `gorm:"index"`

	// DeleteAfter is the unix second after which deletion is due.
	// Nil when the record was never scheduled.
	DeleteAfter *int64 `gorm:"index"`

	ShouldDelete    bool `gorm:"default:false"`
	Deleted         bool `gorm:"default:false"`
	DeleteCancelled bool `gorm:"default:false"`
	DeleteFailed    bool `gorm:"default:false"`
	DeleteAttempt   int  `gorm:"default:0"`
}
