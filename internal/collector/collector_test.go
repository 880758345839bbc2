package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tg-gcbot/internal/models"
	"tg-gcbot/internal/storage"
)

// fakeTransport implements Transport and records every call.
type fakeTransport struct {
	mu       sync.Mutex
	failing  bool
	deleted  []int
	attempts int
	sent     []string
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.failing {
		return fmt.Errorf("message can't be deleted")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID int64) error {
	return nil
}

func (f *fakeTransport) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeTransport) deleteAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type testEnv struct {
	db        *gorm.DB
	gc        *GarbageCollector
	transport *fakeTransport
	messages  *storage.MessageRepository
	settings  *storage.SettingsRepository
	clock     *time.Time
}

// at moves the collector's clock to the given unix second
func (e *testEnv) at(unix int64) {
	*e.clock = time.Unix(unix, 0)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gcbot.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	settings := storage.NewSettingsRepository(db)
	require.NoError(t, settings.MigrateTable())

	messages := storage.NewMessageRepository(db)
	require.NoError(t, messages.MigrateTable())

	transport := &fakeTransport{}
	gc := New(transport, settings, messages, 10*time.Millisecond, DefaultMaxHours)

	clock := time.Unix(1_700_000_000, 0)
	gc.now = func() time.Time { return clock }

	return &testEnv{
		db:        db,
		gc:        gc,
		transport: transport,
		messages:  messages,
		settings:  settings,
		clock:     &clock,
	}
}

func (e *testEnv) record(t *testing.T, chatID int64, messageID int) models.MessageRecord {
	t.Helper()

	var record models.MessageRecord
	err := e.db.Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&record).Error
	require.NoError(t, err)
	return record
}

const chatID = int64(-593555199)

func TestAddMessageUsesChatTTL(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.gc.Enable(chatID, 3600))
	require.NoError(t, env.gc.AddMessage(Message{ChatID: chatID, MessageID: 1, Date: 1000}))

	record := env.record(t, chatID, 1)
	require.True(t, record.ShouldDelete)
	require.NotNil(t, record.DeleteAfter)
	require.Equal(t, int64(4600), *record.DeleteAfter)
}

func TestAddMessageGCDisabled(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.gc.AddMessage(Message{ChatID: chatID, MessageID: 1, Date: 1000}))

	record := env.record(t, chatID, 1)
	require.False(t, record.ShouldDelete)
	require.Nil(t, record.DeleteAfter)
}

func TestAddMessageWithTTLOverridesSettings(t *testing.T) {
	env := newTestEnv(t)

	// gc stays disabled; the override must schedule anyway
	require.NoError(t, env.gc.AddMessageWithTTL(Message{ChatID: chatID, MessageID: 1, Date: 1000}, 300))

	record := env.record(t, chatID, 1)
	require.True(t, record.ShouldDelete)
	require.NotNil(t, record.DeleteAfter)
	require.Equal(t, int64(1300), *record.DeleteAfter)
}

func TestAddMessageWithTTLRejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	err := env.gc.AddMessageWithTTL(Message{ChatID: chatID, MessageID: 1, Date: 1000}, MaxTTL+1)
	require.Error(t, err)

	err = env.gc.Enable(chatID, -1)
	require.Error(t, err)
}

func TestSweepSelectionBoundaryIsInclusive(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addScheduled(t, 1, now-100, now-10)
	env.addScheduled(t, 2, now-100, now)
	env.addScheduled(t, 3, now-100, now+10)

	env.gc.collectGarbage(context.Background())

	require.ElementsMatch(t, []int{1, 2}, env.transport.deleted)

	pending, err := env.gc.CountPending(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)
}

func TestUnreachableRecordsAreExcluded(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	old := now - int64(DefaultMaxHours)*3600 - 10

	// due, candidate, but posted beyond the deletion window
	env.addScheduled(t, 1, old, now-5)

	env.gc.collectGarbage(context.Background())
	require.Empty(t, env.transport.deleted)

	pending, err := env.gc.CountPending(chatID)
	require.NoError(t, err)
	require.Zero(t, pending)

	unreachable, err := env.gc.CountUnreachable(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(1), unreachable)
}

func TestFailedDeletionLeavesCandidateSet(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addScheduled(t, 1, now-100, now-1)

	env.transport.setFailing(true)
	env.gc.collectGarbage(context.Background())

	record := env.record(t, chatID, 1)
	require.True(t, record.DeleteFailed)
	require.False(t, record.ShouldDelete)
	require.False(t, record.Deleted)
	require.Equal(t, 1, record.DeleteAttempt)

	// the record must not be selected again on the next pass
	attempts := env.transport.deleteAttempts()
	env.gc.collectGarbage(context.Background())
	require.Equal(t, attempts, env.transport.deleteAttempts())
}

func TestCancelIsBulkAndTerminal(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	for i := 1; i <= 5; i++ {
		env.addScheduled(t, i, now-100, now-1)
	}

	cancelled, err := env.gc.Cancel(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(5), cancelled)

	for i := 1; i <= 5; i++ {
		record := env.record(t, chatID, i)
		require.False(t, record.ShouldDelete)
		require.True(t, record.DeleteCancelled)
	}

	env.gc.collectGarbage(context.Background())
	require.Empty(t, env.transport.deleted)

	count, err := env.gc.CountCancelled(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(5), count)
}

func TestRetryRespectsMaxAttempts(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addFailed(t, 1, now-100, 1)
	env.addFailed(t, 2, now-100, 3)

	count, err := env.gc.CountFailed(chatID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	env.gc.runRetry(context.Background(), chatID, 2)

	require.Equal(t, []int{1}, env.transport.deleted)
	require.Equal(t, []string{"Deleted 1 message(s) out of 1 after re-trying."}, env.transport.sent)

	first := env.record(t, chatID, 1)
	require.True(t, first.Deleted)
	require.Equal(t, 2, first.DeleteAttempt)

	second := env.record(t, chatID, 2)
	require.False(t, second.Deleted)
	require.Equal(t, 3, second.DeleteAttempt)
}

func TestRetryWithoutBoundSelectsAllFailed(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addFailed(t, 1, now-100, 1)
	env.addFailed(t, 2, now-100, 999)

	env.gc.runRetry(context.Background(), chatID, 0)

	require.ElementsMatch(t, []int{1, 2}, env.transport.deleted)
	require.Equal(t, []string{"Deleted 2 message(s) out of 2 after re-trying."}, env.transport.sent)
}

func TestRetryHandsOffThroughQueue(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addFailed(t, 1, now-100, 1)

	require.NoError(t, env.gc.Retry(chatID, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.gc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var record models.MessageRecord
		if err := env.db.Where("chat_id = ? AND message_id = ?", chatID, 1).First(&record).Error; err != nil {
			return false
		}
		return record.Deleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestEndToEndScenario(t *testing.T) {
	env := newTestEnv(t)
	env.at(990)

	require.NoError(t, env.gc.Enable(chatID, 5))
	require.NoError(t, env.gc.AddMessage(Message{ChatID: chatID, MessageID: 125, Date: 1000}))

	env.at(1004)
	env.gc.collectGarbage(context.Background())
	require.Empty(t, env.transport.deleted)

	pending, err := env.gc.CountPending(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	env.at(1006)
	env.gc.collectGarbage(context.Background())
	require.Equal(t, []int{125}, env.transport.deleted)

	pending, err = env.gc.CountPending(chatID)
	require.NoError(t, err)
	require.Zero(t, pending)

	deleted, err := env.gc.CountDeleted(chatID)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

func TestNextDeleteIn(t *testing.T) {
	env := newTestEnv(t)

	_, ok, err := env.gc.NextDeleteIn(chatID)
	require.NoError(t, err)
	require.False(t, ok)

	now := env.gc.now().Unix()
	env.addScheduled(t, 1, now-100, now+90)
	env.addScheduled(t, 2, now-100, now+30)

	next, ok, err := env.gc.NextDeleteIn(chatID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, next)
}

func TestRemovalQueueOrdering(t *testing.T) {
	env := newTestEnv(t)

	now := env.gc.now().Unix()
	env.addScheduled(t, 1, now-100, now+90)
	env.addScheduled(t, 2, now-100, now+30)
	env.addScheduled(t, 3, now-100, now+60)

	records, err := env.gc.RemovalQueue(chatID)
	require.NoError(t, err)

	ids := make([]int, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.MessageID)
	}
	require.Equal(t, []int{2, 3, 1}, ids)
}

func TestStatusSnapshot(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.gc.Enable(chatID, 3600))

	now := env.gc.now().Unix()
	env.addScheduled(t, 1, now-100, now+75)
	env.addFailed(t, 2, now-100, 1)

	status, err := env.gc.Status(chatID)
	require.NoError(t, err)

	require.True(t, status.GCEnabled)
	require.Equal(t, int64(3600), status.GCTTL)
	require.Equal(t, int64(1), status.Pending)
	require.Equal(t, int64(1), status.Failed)
	require.Zero(t, status.Cancelled)
	require.Zero(t, status.Deleted)
	require.Equal(t, "1m 15s", status.NextDeleteIn)
}

func TestStatusWithoutActiveRecords(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.gc.Status(chatID)
	require.NoError(t, err)
	require.False(t, status.GCEnabled)
	require.Equal(t, "N/A", status.NextDeleteIn)
}

func TestFormatInterval(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h"},
		{26*time.Hour + 3*time.Minute, "1d 2h 3m"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, FormatInterval(tc.d), "FormatInterval(%v)", tc.d)
	}
}

// addScheduled inserts an active deletion candidate directly
func (e *testEnv) addScheduled(t *testing.T, messageID int, date, deleteAfter int64) {
	t.Helper()

	record := models.MessageRecord{
		ChatID:       chatID,
		MessageID:    messageID,
		Date:         date,
		DeleteAfter:  &deleteAfter,
		ShouldDelete: true,
	}
	require.NoError(t, e.messages.Create(&record))
}

// addFailed inserts a record in the failed state with the given attempt count
func (e *testEnv) addFailed(t *testing.T, messageID int, date int64, attempts int) {
	t.Helper()

	deleteAfter := date + 1
	record := models.MessageRecord{
		ChatID:        chatID,
		MessageID:     messageID,
		Date:          date,
		DeleteAfter:   &deleteAfter,
		ShouldDelete:  false,
		DeleteFailed:  true,
		DeleteAttempt: attempts,
	}
	require.NoError(t, e.messages.Create(&record))
}
