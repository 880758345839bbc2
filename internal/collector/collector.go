package collector

import (
	"context"
	"fmt"
	"time"

	"tg-gcbot/internal/logger"
	"tg-gcbot/internal/models"
	"tg-gcbot/internal/storage"
)

const (
	// DefaultMaxHours is the window during which Telegram still allows
	// deleting a message after it was posted.
	DefaultMaxHours = 48

	// MaxTTL is the largest accepted time-to-live in seconds (2 days).
	MaxTTL = 172800

	// DefaultSweepInterval is the pause between sweep passes.
	DefaultSweepInterval = time.Second

	retryQueueSize = 16
)

// Transport is the capability the collector needs from the Telegram
// client. A non-nil error from DeleteMessage is treated as a deletion
// failure, never as a fatal condition.
type Transport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Message is the transport-agnostic shape of an ingested message.
type Message struct {
	ChatID    int64
	MessageID int
	Date      int64
}

type retryRequest struct {
	chatID      int64
	maxAttempts int
}

// GarbageCollector tracks ingested messages and deletes them once they
// age past their chat's TTL. All deletion-outcome fields are written
// exclusively from the sweep goroutine; the foreground paths only
// create records, update settings and perform bulk cancellation.
type GarbageCollector struct {
	transport Transport
	settings  *storage.SettingsRepository
	messages  *storage.MessageRepository

	sweepInterval time.Duration
	maxHours      int
	retries       chan retryRequest

	now func() time.Time
}

// New creates a garbage collector backed by the given transport and
// repositories.
func New(transport Transport, settings *storage.SettingsRepository, messages *storage.MessageRepository, sweepInterval time.Duration, maxHours int) *GarbageCollector {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if maxHours <= 0 {
		maxHours = DefaultMaxHours
	}

	return &GarbageCollector{
		transport:     transport,
		settings:      settings,
		messages:      messages,
		sweepInterval: sweepInterval,
		maxHours:      maxHours,
		retries:       make(chan retryRequest, retryQueueSize),
		now:           time.Now,
	}
}

// Run executes the sweep loop until the context is cancelled. Between
// sweep passes it drains at most one queued retry job, so every write
// of a deletion outcome happens on this goroutine.
func (c *GarbageCollector) Run(ctx context.Context) {
	logger.Infof("Starting garbage collector sweep loop (interval %v)", c.sweepInterval)

	for {
		c.collectGarbage(ctx)

		select {
		case <-ctx.Done():
			logger.Infof("Garbage collector stopped: %v", ctx.Err())
			return
		case req := <-c.retries:
			c.runRetry(ctx, req.chatID, req.maxAttempts)
		case <-time.After(c.sweepInterval):
		}
	}
}

// unreachableDate is the origin-timestamp horizon behind which Telegram
// no longer permits deletion.
func (c *GarbageCollector) unreachableDate() int64 {
	return c.now().Add(-time.Duration(c.maxHours) * time.Hour).Unix()
}

// Enable turns on garbage collection for the chat with the given TTL.
func (c *GarbageCollector) Enable(chatID, ttl int64) error {
	if err := validTTL(ttl); err != nil {
		return err
	}

	logger.Debugf("Enabling garbage collector for chat %d with ttl %ds", chatID, ttl)

	settings, err := c.settings.GetOrCreate(chatID)
	if err != nil {
		return err
	}

	settings.GCEnabled = true
	settings.GCTTL = ttl
	return c.settings.Save(settings)
}

// Disable turns off garbage collection for the chat. Already scheduled
// records keep their schedule; use Cancel to drop them.
func (c *GarbageCollector) Disable(chatID int64) error {
	logger.Debugf("Disabling garbage collector for chat %d", chatID)

	settings, err := c.settings.GetOrCreate(chatID)
	if err != nil {
		return err
	}

	settings.GCEnabled = false
	return c.settings.Save(settings)
}

// SetForwardsTTL sets the TTL applied to forwards from the undesirable
// channel list. Zero disables the feature.
func (c *GarbageCollector) SetForwardsTTL(chatID, ttl int64) error {
	if err := validTTL(ttl); err != nil {
		return err
	}

	settings, err := c.settings.GetOrCreate(chatID)
	if err != nil {
		return err
	}

	settings.ForwardsTTL = ttl
	return c.settings.Save(settings)
}

// ForwardsTTL reports the chat's forwards TTL, zero when disabled.
func (c *GarbageCollector) ForwardsTTL(chatID int64) (int64, error) {
	settings, err := c.settings.GetOrCreate(chatID)
	if err != nil {
		return 0, err
	}
	return settings.ForwardsTTL, nil
}

// AddMessage registers a message with the collector, scheduling its
// deletion when the chat's garbage collection is enabled.
func (c *GarbageCollector) AddMessage(msg Message) error {
	settings, err := c.settings.GetOrCreate(msg.ChatID)
	if err != nil {
		return err
	}

	if settings.GCEnabled {
		return c.addRecord(msg, msg.Date+settings.GCTTL, true)
	}
	return c.addRecord(msg, 0, false)
}

// AddMessageWithTTL registers a message with an explicit TTL, ignoring
// the chat's settings. Used for tagged messages and matched forwards.
func (c *GarbageCollector) AddMessageWithTTL(msg Message, ttl int64) error {
	if err := validTTL(ttl); err != nil {
		return err
	}
	return c.addRecord(msg, msg.Date+ttl, true)
}

func (c *GarbageCollector) addRecord(msg Message, deleteAfter int64, shouldDelete bool) error {
	logger.Debugf("Adding message %d to the garbage collector", msg.MessageID)

	record := models.MessageRecord{
		ChatID:       msg.ChatID,
		MessageID:    msg.MessageID,
		Date:         msg.Date,
		ShouldDelete: shouldDelete,
	}
	if shouldDelete {
		record.DeleteAfter = &deleteAfter
	}

	return c.messages.Create(&record)
}

// Cancel flips all of the chat's pending removals to cancelled and
// returns how many were affected. Cancelled records are terminal and
// never retried automatically.
func (c *GarbageCollector) Cancel(chatID int64) (int64, error) {
	logger.Debugf("Cancelling removal of pending messages in chat %d", chatID)
	return c.messages.CancelPending(chatID)
}

// Retry schedules a retry of the chat's failed deletions. The job is
// handed to the sweep goroutine through a queue so that deletion
// outcomes stay single-writer; the call itself never blocks the
// command path.
func (c *GarbageCollector) Retry(chatID int64, maxAttempts int) error {
	if maxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", maxAttempts)
	}

	select {
	case c.retries <- retryRequest{chatID: chatID, maxAttempts: maxAttempts}:
		return nil
	default:
		return fmt.Errorf("retry queue is full")
	}
}

// collectGarbage performs one sweep pass: select due, reachable,
// undeleted candidates and attempt each deletion in order.
func (c *GarbageCollector) collectGarbage(ctx context.Context) {
	now := c.now().Unix()
	records, err := c.messages.Due(now, c.unreachableDate())
	if err != nil {
		logger.Errorf("Failed to query due records: %v", err)
		return
	}

	if len(records) > 0 {
		ids := make([]int, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.MessageID)
		}
		logger.Debugf("Collected %v", ids)
	}

	for i := range records {
		c.deleteRecord(ctx, &records[i])
	}
}

// deleteRecord attempts to delete one message through the transport and
// persists the outcome before the caller moves to the next record.
func (c *GarbageCollector) deleteRecord(ctx context.Context, record *models.MessageRecord) {
	logger.Debugf("Deleting message %d from chat %d", record.MessageID, record.ChatID)

	err := c.transport.DeleteMessage(ctx, record.ChatID, record.MessageID)

	record.DeleteAttempt++
	if err == nil {
		record.Deleted = true
	} else {
		record.ShouldDelete = false
		record.Deleted = false
		record.DeleteFailed = true
		logger.Errorf("Failed to delete message %d: %v", record.MessageID, err)
	}

	if err := c.messages.Save(record); err != nil {
		logger.Errorf("Failed to persist record for message %d: %v", record.MessageID, err)
	}
}

// runRetry re-attempts the chat's failed deletions and reports the
// result back to the chat. Runs on the sweep goroutine only.
func (c *GarbageCollector) runRetry(ctx context.Context, chatID int64, maxAttempts int) {
	logger.Debugf("Re-trying to delete failed messages for chat %d", chatID)

	failed, err := c.messages.Failed(chatID, c.unreachableDate(), maxAttempts)
	if err != nil {
		logger.Errorf("Failed to query failed records for chat %d: %v", chatID, err)
		return
	}

	deleted := 0
	for i := range failed {
		c.deleteRecord(ctx, &failed[i])
		if failed[i].Deleted {
			deleted++
		}
	}

	text := fmt.Sprintf("Deleted %d message(s) out of %d after re-trying.", deleted, len(failed))
	if err := c.transport.SendMessage(ctx, chatID, text); err != nil {
		logger.Warningf("Failed to report retry result to chat %d: %v", chatID, err)
	}
}

func validTTL(ttl int64) error {
	if ttl < 0 || ttl > MaxTTL {
		return fmt.Errorf("ttl must be between 0 and %d seconds, got %d", MaxTTL, ttl)
	}
	return nil
}
