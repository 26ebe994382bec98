package file

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_HealthCheck(t *testing.T) {
	root := t.TempDir()

	p := NewPersistence("file://" + root)
	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))

	missing := NewPersistence(path.Join(root, "missing"))
	assert.ErrorIs(t, missing.HealthCheck(t.Context()), os.ErrNotExist)
}

func TestWorkflowRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewWorkflowRepository(t.TempDir())

	list, err := repo.List(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	second := &models.Workflow{Title: "Second", Status: models.WorkflowStatusActive, Type: models.WorkflowTypeAutomatic, Order: 2, Trigger: models.TriggerConfig{Name: "order_paid"}}
	first := &models.Workflow{Title: "First", Status: models.WorkflowStatusDisabled, Type: models.WorkflowTypeAutomatic, Order: 1, Trigger: models.TriggerConfig{Name: "order_paid"}}
	manual := &models.Workflow{Title: "Manual", Status: models.WorkflowStatusActive, Type: models.WorkflowTypeManual, Order: 0, Trigger: models.TriggerConfig{Name: "manual_order"}}

	for _, wf := range []*models.Workflow{second, first, manual} {
		require.NoError(t, repo.Save(ctx, wf))
		assert.NotEmpty(t, wf.ID)
		assert.False(t, wf.CreatedAt.IsZero())
	}

	got, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.Equal(t, "order_paid", got.Trigger.Name)

	list, err = repo.List(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Manual", "First", "Second"}, []string{list[0].Title, list[1].Title, list[2].Title})

	list, err = repo.List(ctx, persistence.ListWorkflowsOptions{Trigger: "order_paid", Status: models.WorkflowStatusActive})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = repo.List(ctx, persistence.ListWorkflowsOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	created := second.CreatedAt
	second.Title = "Second renamed"
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, created, second.CreatedAt)

	require.NoError(t, repo.Delete(ctx, second.ID))

	_, err = repo.Get(ctx, second.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, persistence.IsWorkflowNotFound(repo.Delete(ctx, second.ID)))
}

func TestQueueRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewQueueRepository(t.TempDir())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	late := &models.QueuedEvent{WorkflowID: "w1", DueDate: now.Add(time.Hour), CreatedAt: now, DataItems: map[string]string{"order": "o1"}}
	early := &models.QueuedEvent{WorkflowID: "w1", DueDate: now.Add(-time.Hour), CreatedAt: now, DataItems: map[string]string{"order": "o2"}}
	other := &models.QueuedEvent{WorkflowID: "w2", DueDate: now.Add(-2 * time.Hour), CreatedAt: now, DataItems: map[string]string{"cart": "c1"}}

	for _, ev := range []*models.QueuedEvent{late, early, other} {
		require.NoError(t, repo.Create(ctx, ev))
	}

	due, err := repo.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, other.ID, due[0].ID)
	assert.Equal(t, early.ID, due[1].ID)

	due, err = repo.Due(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	won, err := repo.Claim(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Claim(ctx, early.ID)
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose")

	claimed, err := repo.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Failed)
	assert.Equal(t, models.FailureFatalError, claimed.FailureCode)

	due, err = repo.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	failed := true
	list, err := repo.List(ctx, persistence.ListQueueOptions{Failed: &failed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, early.ID, list[0].ID)

	require.NoError(t, repo.Retry(ctx, early.ID, now))

	retried, err := repo.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.False(t, retried.Failed)
	assert.Equal(t, models.FailureNone, retried.FailureCode)

	exists, err := repo.ExistsForEntity(ctx, "w1", "order", "o1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForEntity(ctx, "w2", "order", "o1")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := repo.DeleteForEntity(ctx, "w1", "order", "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Claim(ctx, other.ID)
	require.NoError(t, err)

	n, err = repo.DeleteFailedBefore(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.DeleteForWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = repo.List(ctx, persistence.ListQueueOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.True(t, persistence.IsQueuedEventNotFound(repo.Delete(ctx, early.ID)))
	assert.True(t, persistence.IsQueuedEventNotFound(repo.Retry(ctx, early.ID, now)))
}

func TestLogRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewLogRepository(t.TempDir())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	older := &models.Log{WorkflowID: "w1", Date: now.Add(-48 * time.Hour), DataItems: map[string]string{"order": "o1"}}
	newer := &models.Log{WorkflowID: "w1", Date: now, DataItems: map[string]string{"order": "o2"}}
	failed := &models.Log{WorkflowID: "w1", Date: now, Failed: true, DataItems: map[string]string{"order": "o3"}}

	for _, l := range []*models.Log{older, newer, failed} {
		require.NoError(t, repo.Create(ctx, l))
	}

	list, err := repo.List(ctx, persistence.ListLogsOptions{WorkflowID: "w1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotEqual(t, older.ID, list[0].ID)

	tests := []struct {
		name  string
		token string
		since time.Time
		want  bool
	}{
		{"forever", "o1", time.Time{}, true},
		{"outside window", "o1", now.Add(-24 * time.Hour), false},
		{"inside window", "o2", now.Add(-24 * time.Hour), true},
		{"failed runs do not count", "o3", time.Time{}, false},
		{"unknown entity", "o9", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HasRunForEntity(ctx, "w1", "order", tt.token, tt.since)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	newer.MarkClicked(now)
	require.NoError(t, repo.Update(ctx, newer))

	got, err := repo.Get(ctx, newer.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OpenedAt)
	require.NotNil(t, got.ClickedAt)

	n, err := repo.DeleteForWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.Get(ctx, newer.ID)
	assert.True(t, persistence.IsLogNotFound(err))
	assert.True(t, persistence.IsLogNotFound(repo.Update(ctx, newer)))
}
