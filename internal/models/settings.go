package models

import "time"

// Settings holds the per-chat garbage collection configuration.
// Exactly one row exists per chat, created lazily on first access.
type Settings struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ChatID      int64 `gorm:"uniqueIndex"`
	GCEnabled   bool  `gorm:"column:gc_enabled;default:false"`
	GCTTL       int64 `gorm:"column:gc_ttl;default:0"`
	ForwardsTTL int64 `gorm:"column:forwards_ttl;default:0"` // 0 means forwards removal is off
}
