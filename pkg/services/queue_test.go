package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/testutil"
	"github.com/dukex/shopflow/pkg/triggers"
)

func TestQueue_ListDeleteRetry(t *testing.T) {
	env := testutil.NewEnv(t)
	service := NewQueue(log.Discard(), env.Persistence, env.Now)
	wf := env.SaveWorkflow(t, testutil.NewWorkflow(triggers.OrderStatusChangesName, testutil.WithDelay(time.Hour)))

	first, err := env.Service.Queue(t.Context(), wf, env.OrderLayer(t, testutil.BigOrderID))
	require.NoError(t, err)
	second, err := env.Service.Queue(t.Context(), wf, env.OrderLayer(t, testutil.SmallOrderID))
	require.NoError(t, err)

	won, err := env.Persistence.QueueRepository().Claim(t.Context(), first.ID)
	require.NoError(t, err)
	require.True(t, won)

	failed := true
	events, err := service.List(t.Context(), ListQueueRequest{Failed: &failed})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first.ID, events[0].ID)

	_, err = service.Retry(t.Context(), second.ID)
	assert.ErrorIs(t, err, ErrQueuedEventNotFailed)
	assert.True(t, IsConflictError(err))

	retried, err := service.Retry(t.Context(), first.ID)
	require.NoError(t, err)
	assert.False(t, retried.Failed)
	assert.Equal(t, models.FailureNone, retried.FailureCode)
	assert.True(t, retried.DueDate.Equal(env.Now()))

	require.NoError(t, service.Delete(t.Context(), second.ID))

	_, err = service.Get(t.Context(), second.ID)
	assert.True(t, persistence.IsQueuedEventNotFound(err))

	all, err := service.List(t.Context(), ListQueueRequest{WorkflowID: wf.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLogs_Tracking(t *testing.T) {
	env := testutil.NewEnv(t)
	service := NewLogs(env.Persistence, env.Now)

	entry := &models.Log{WorkflowID: "w1", Date: env.Now()}
	require.NoError(t, env.Persistence.LogRepository().Create(t.Context(), entry))

	opened, err := service.TrackOpen(t.Context(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, opened.OpenedAt)
	assert.Nil(t, opened.ClickedAt)

	env.Advance(time.Minute)

	clicked, err := service.TrackClick(t.Context(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, clicked.ClickedAt)
	assert.True(t, clicked.OpenedAt.Before(*clicked.ClickedAt), "first open is kept")

	stored, err := service.Get(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ClickedAt)

	_, err = service.TrackOpen(t.Context(), "missing")
	assert.True(t, persistence.IsLogNotFound(err))

	logs, err := service.List(t.Context(), ListLogsRequest{WorkflowID: "w1"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
