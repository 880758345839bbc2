package collector

import (
	"fmt"
	"strings"
	"time"

	"tg-gcbot/internal/models"
)

// Status is a point-in-time snapshot of the chat's garbage collection
// state, consumed by the /status command.
type Status struct {
	GCEnabled    bool
	GCTTL        int64
	Pending      int64
	Unreachable  int64
	Cancelled    int64
	Failed       int64
	Deleted      int64
	NextDeleteIn string
}

// CountPending counts active, reachable, undeleted candidates.
func (c *GarbageCollector) CountPending(chatID int64) (int64, error) {
	return c.messages.CountPending(chatID, c.unreachableDate())
}

// CountUnreachable counts undeleted records past the deletion window.
func (c *GarbageCollector) CountUnreachable(chatID int64) (int64, error) {
	return c.messages.CountUnreachable(chatID, c.unreachableDate())
}

// CountCancelled counts reachable, undeleted, cancelled records.
func (c *GarbageCollector) CountCancelled(chatID int64) (int64, error) {
	return c.messages.CountCancelled(chatID, c.unreachableDate())
}

// CountDeleted counts the chat's all-time deleted records.
func (c *GarbageCollector) CountDeleted(chatID int64) (int64, error) {
	return c.messages.CountDeleted(chatID)
}

// CountFailed counts the records a retry with the same bound would
// select. A maxAttempts of zero applies no attempt bound.
func (c *GarbageCollector) CountFailed(chatID int64, maxAttempts int) (int64, error) {
	return c.messages.CountFailed(chatID, c.unreachableDate(), maxAttempts)
}

// NextDeleteIn reports the time remaining until the earliest-due active
// record. ok is false when the chat has no active records.
func (c *GarbageCollector) NextDeleteIn(chatID int64) (time.Duration, bool, error) {
	record, err := c.messages.NextDue(chatID, c.unreachableDate())
	if err != nil || record == nil {
		return 0, false, err
	}
	return time.Unix(*record.DeleteAfter, 0).Sub(c.now()), true, nil
}

// RemovalQueue returns the chat's active candidates ordered by due time.
func (c *GarbageCollector) RemovalQueue(chatID int64) ([]models.MessageRecord, error) {
	return c.messages.RemovalQueue(chatID, c.unreachableDate())
}

// Status bundles the chat's settings with all counters and the
// formatted next-deletion ETA.
func (c *GarbageCollector) Status(chatID int64) (*Status, error) {
	settings, err := c.settings.GetOrCreate(chatID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		GCEnabled:    settings.GCEnabled,
		GCTTL:        settings.GCTTL,
		NextDeleteIn: "N/A",
	}

	if status.Pending, err = c.CountPending(chatID); err != nil {
		return nil, err
	}
	if status.Unreachable, err = c.CountUnreachable(chatID); err != nil {
		return nil, err
	}
	if status.Cancelled, err = c.CountCancelled(chatID); err != nil {
		return nil, err
	}
	if status.Failed, err = c.CountFailed(chatID, 0); err != nil {
		return nil, err
	}
	if status.Deleted, err = c.CountDeleted(chatID); err != nil {
		return nil, err
	}

	nextIn, ok, err := c.NextDeleteIn(chatID)
	if err != nil {
		return nil, err
	}
	if ok {
		status.NextDeleteIn = FormatInterval(nextIn)
	}

	return status, nil
}

// FormatInterval renders a duration as a compact "1d 2h 3m 4s" string.
// Durations below one second render as "0s".
func FormatInterval(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int64(d.Seconds())
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	return strings.Join(parts, " ")
}
