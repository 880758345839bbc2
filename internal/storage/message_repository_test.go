package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tg-gcbot/internal/models"
)

func newMessageRepo(t *testing.T) *MessageRepository {
	t.Helper()

	repo := NewMessageRepository(newTestDB(t))
	require.NoError(t, repo.MigrateTable())
	return repo
}

func scheduled(chatID int64, messageID int, date, deleteAfter int64) *models.MessageRecord {
	return &models.MessageRecord{
		ChatID:       chatID,
		MessageID:    messageID,
		Date:         date,
		DeleteAfter:  &deleteAfter,
		ShouldDelete: true,
	}
}

func TestDueSelection(t *testing.T) {
	repo := newMessageRepo(t)

	now := int64(10_000)
	horizon := int64(1_000)

	require.NoError(t, repo.Create(scheduled(1, 1, 5000, now-1)))
	require.NoError(t, repo.Create(scheduled(1, 2, 5000, now))) // boundary, included
	require.NoError(t, repo.Create(scheduled(1, 3, 5000, now+1)))
	// unscheduled record, no delete_after
	require.NoError(t, repo.Create(&models.MessageRecord{ChatID: 1, MessageID: 4, Date: 5000}))
	// past the reachable window
	require.NoError(t, repo.Create(scheduled(1, 5, horizon, now-1)))

	records, err := repo.Due(now, horizon)
	require.NoError(t, err)

	ids := make([]int, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.MessageID)
	}
	require.Equal(t, []int{1, 2}, ids)
}

func TestDueOrdersByDueTime(t *testing.T) {
	repo := newMessageRepo(t)

	require.NoError(t, repo.Create(scheduled(1, 1, 5000, 9_000)))
	require.NoError(t, repo.Create(scheduled(1, 2, 5000, 7_000)))
	require.NoError(t, repo.Create(scheduled(1, 3, 5000, 8_000)))

	records, err := repo.Due(10_000, 1_000)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 2, records[0].MessageID)
	require.Equal(t, 3, records[1].MessageID)
	require.Equal(t, 1, records[2].MessageID)
}

func TestCancelPendingIsBulkAndScoped(t *testing.T) {
	repo := newMessageRepo(t)

	require.NoError(t, repo.Create(scheduled(1, 1, 5000, 9_000)))
	require.NoError(t, repo.Create(scheduled(1, 2, 5000, 9_000)))
	require.NoError(t, repo.Create(scheduled(2, 3, 5000, 9_000))) // other chat

	deleted := scheduled(1, 4, 5000, 9_000)
	deleted.Deleted = true
	deleted.ShouldDelete = true
	require.NoError(t, repo.Create(deleted))

	affected, err := repo.CancelPending(1)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	count, err := repo.CountCancelled(1, 1_000)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// the other chat's record stays pending
	count, err = repo.CountPending(2, 1_000)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestFailedAttemptBound(t *testing.T) {
	repo := newMessageRepo(t)

	failed := func(messageID, attempts int) *models.MessageRecord {
		deleteAfter := int64(6_000)
		return &models.MessageRecord{
			ChatID:        1,
			MessageID:     messageID,
			Date:          5000,
			DeleteAfter:   &deleteAfter,
			DeleteFailed:  true,
			DeleteAttempt: attempts,
		}
	}

	require.NoError(t, repo.Create(failed(1, 1)))
	require.NoError(t, repo.Create(failed(2, 2)))
	require.NoError(t, repo.Create(failed(3, 5)))

	records, err := repo.Failed(1, 1_000, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	count, err := repo.CountFailed(1, 1_000, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// zero bound selects everything
	count, err = repo.CountFailed(1, 1_000, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestNextDue(t *testing.T) {
	repo := newMessageRepo(t)

	record, err := repo.NextDue(1, 1_000)
	require.NoError(t, err)
	require.Nil(t, record)

	require.NoError(t, repo.Create(scheduled(1, 1, 5000, 9_000)))
	require.NoError(t, repo.Create(scheduled(1, 2, 5000, 7_000)))

	record, err = repo.NextDue(1, 1_000)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, 2, record.MessageID)
}

func TestCountUnreachable(t *testing.T) {
	repo := newMessageRepo(t)

	require.NoError(t, repo.Create(scheduled(1, 1, 500, 9_000)))
	require.NoError(t, repo.Create(scheduled(1, 2, 5000, 9_000)))

	count, err := repo.CountUnreachable(1, 1_000)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// unreachable records never show up as pending
	count, err = repo.CountPending(1, 1_000)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
