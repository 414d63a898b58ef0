package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
)

func TestStatusForDeadline(t *testing.T) {
	now := date(2024, 11, 1)

	tests := []struct {
		name     string
		deadline time.Time
		want     models.TaskStatus
	}{
		{"far future is new", date(2024, 12, 15), models.StatusNew},
		{"inside threshold is pending", date(2024, 11, 6), models.StatusPending},
		{"deadline today is pending", date(2024, 11, 1), models.StatusPending},
		{"exactly at threshold is pending", date(2024, 11, 8), models.StatusPending},
		{"just past threshold is new", date(2024, 11, 9), models.StatusNew},
		{"past deadline is late", date(2024, 10, 31), models.StatusLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForDeadline(tt.deadline, now, 7))
		})
	}
}

func newSweepFixture(t *testing.T) (*fakeTaskRepo, *recordingNotifier, *StatusService) {
	t.Helper()
	docs := newFakeDocumentRepo()
	tasks := newFakeTaskRepo(docs)
	notifier := &recordingNotifier{}
	return tasks, notifier, NewStatusService(tasks, notifier, 7)
}

func storeTask(t *testing.T, repo *fakeTaskRepo, companyID int64, deadline time.Time, status models.TaskStatus) *models.Task {
	t.Helper()
	obligationID := int64(1)
	task := &models.Task{
		ObligationID: &obligationID,
		CompanyID:    companyID,
		GroupID:      10,
		Title:        "Task",
		Competence:   date(2024, 1, 1).AddDate(0, int(companyID), 0),
		Deadline:     deadline,
		Status:       status,
	}
	require.NoError(t, repo.Store(context.Background(), task))
	return task
}

func TestSweepAdvancesStatuses(t *testing.T) {
	tasks, notifier, svc := newSweepFixture(t)
	ctx := context.Background()
	now := date(2024, 11, 10)

	responsible := int64(5)
	fresh := storeTask(t, tasks, 1, date(2024, 12, 25), models.StatusNew)
	entering := storeTask(t, tasks, 2, date(2024, 11, 15), models.StatusNew)
	overdue := storeTask(t, tasks, 3, date(2024, 11, 5), models.StatusPending)
	overdue.ResponsibleID = &responsible
	require.NoError(t, tasks.Update(ctx, overdue))

	sum, err := svc.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Scanned)
	assert.Equal(t, 1, sum.TurnedLate)
	assert.Equal(t, 1, sum.TurnedPend)

	got, _ := tasks.FindByID(ctx, fresh.ID)
	assert.Equal(t, models.StatusNew, got.Status)

	got, _ = tasks.FindByID(ctx, entering.ID)
	assert.Equal(t, models.StatusPending, got.Status)

	got, _ = tasks.FindByID(ctx, overdue.ID)
	assert.Equal(t, models.StatusLate, got.Status)
	assert.Equal(t, 5, got.DaysDelayed)

	late := notifier.byType(notify.EventTaskLate)
	require.Len(t, late, 1)
	assert.Equal(t, responsible, late[0].UserID)
}

func TestSweepNeverMovesBackward(t *testing.T) {
	tasks, _, svc := newSweepFixture(t)
	ctx := context.Background()

	// Deadline moved out after the task already turned late.
	lateTask := storeTask(t, tasks, 1, date(2025, 1, 15), models.StatusLate)

	_, err := svc.Sweep(ctx, date(2024, 11, 10))
	require.NoError(t, err)

	got, _ := tasks.FindByID(ctx, lateTask.ID)
	assert.Equal(t, models.StatusLate, got.Status, "late never reverts to pending")
}

func TestSweepUpdatesDelayCounter(t *testing.T) {
	tasks, notifier, svc := newSweepFixture(t)
	ctx := context.Background()

	overdue := storeTask(t, tasks, 1, date(2024, 11, 1), models.StatusPending)

	_, err := svc.Sweep(ctx, date(2024, 11, 3))
	require.NoError(t, err)
	got, _ := tasks.FindByID(ctx, overdue.ID)
	assert.Equal(t, 2, got.DaysDelayed)

	_, err = svc.Sweep(ctx, date(2024, 11, 8))
	require.NoError(t, err)
	got, _ = tasks.FindByID(ctx, overdue.ID)
	assert.Equal(t, 7, got.DaysDelayed)

	// Only the first pass counts as a transition and notifies.
	assert.Len(t, notifier.byType(notify.EventTaskLate), 1)
}

func TestSweepIgnoresFinishedAndArchived(t *testing.T) {
	tasks, _, svc := newSweepFixture(t)
	ctx := context.Background()

	done := storeTask(t, tasks, 1, date(2024, 10, 1), models.StatusFinished)
	archived := storeTask(t, tasks, 2, date(2024, 10, 1), models.StatusNew)
	require.NoError(t, tasks.SetArchived(ctx, archived.ID, true))

	sum, err := svc.Sweep(ctx, date(2024, 11, 10))
	require.NoError(t, err)
	assert.Zero(t, sum.Scanned)

	got, _ := tasks.FindByID(ctx, done.ID)
	assert.Equal(t, models.StatusFinished, got.Status)
}
