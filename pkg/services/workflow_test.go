package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/batch"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/testutil"
	"github.com/dukex/shopflow/pkg/triggers"
)

func newWorkflowService(env *testutil.Env) *Workflow {
	return NewWorkflow(log.Discard(), env.Persistence, env.Registry, env.Settings, env.Active, env.Service, newBatchRunner(env))
}

func newBatchRunner(env *testutil.Env) *batch.Runner {
	return batch.NewRunner(batch.Deps{
		Logger:     log.Discard(),
		Workflows:  env.Persistence.WorkflowRepository(),
		Triggers:   env.Triggers,
		Dispatcher: env.Dispatcher,
		Scheduler:  env.Scheduler,
		Settings:   env.Settings,
		Now:        env.Now,
	})
}

func TestWorkflow_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	wf := testutil.NewWorkflow(triggers.OrderCreatedName)
	wf.Status = ""
	wf.Type = ""

	created, err := service.Create(t.Context(), wf)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, models.WorkflowStatusDisabled, created.Status)
	assert.Equal(t, models.WorkflowTypeAutomatic, created.Type)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, fetched.Title)
}

func TestWorkflow_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		wf   *models.Workflow
	}{
		{"short title", testutil.NewWorkflow(triggers.OrderCreatedName, testutil.WithTitle("ab"))},
		{"unknown trigger", testutil.NewWorkflow("order_shipped")},
		{"unknown rule", testutil.NewWorkflow(triggers.OrderCreatedName, testutil.WithRule("order_weight", "greater_than", 3))},
		{"unknown action", testutil.NewWorkflow(triggers.OrderCreatedName, testutil.WithActions(models.ActionConfig{Name: "send_sms"}))},
		{"manual workflow on automatic trigger", testutil.NewWorkflow(triggers.OrderCreatedName, testutil.Manual())},
		{"invalid timing", testutil.NewWorkflow(triggers.OrderCreatedName, testutil.WithTiming(models.Timing{Type: "hourly"}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv(t)
			service := newWorkflowService(env)

			_, err := service.Create(t.Context(), tt.wf)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)

			var serr *ServiceError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "Create", serr.Op)
		})
	}

	_, err := newWorkflowService(testutil.NewEnv(t)).Create(t.Context(), nil)
	assert.ErrorIs(t, err, ErrWorkflowNil)
}

func TestWorkflow_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	created, err := service.Create(t.Context(), testutil.NewWorkflow(triggers.OrderCreatedName))
	require.NoError(t, err)

	changed := testutil.NewWorkflow(triggers.OrderPaidName, testutil.WithTitle("Paid follow up"))
	changed.Status = ""

	updated, err := service.Update(t.Context(), created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, models.WorkflowStatusActive, updated.Status, "status is kept when omitted")
	assert.Equal(t, triggers.OrderPaidName, updated.Trigger.Name)

	_, err = service.Update(t.Context(), "missing", testutil.NewWorkflow(triggers.OrderCreatedName))
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflow_ChangesRefreshActiveTriggers(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	names, err := env.Active.Names(t.Context())
	require.NoError(t, err)
	assert.Empty(t, names)

	version := env.Settings.Version(t.Context())

	created, err := service.Create(t.Context(), testutil.NewWorkflow(triggers.CartAbandonedName))
	require.NoError(t, err)
	assert.NotEqual(t, version, env.Settings.Version(t.Context()))

	names, err = env.Active.Names(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{triggers.CartAbandonedName}, names)

	_, err = service.SetStatus(t.Context(), created.ID, models.WorkflowStatusDisabled)
	require.NoError(t, err)

	names, err = env.Active.Names(t.Context())
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = service.SetStatus(t.Context(), created.ID, "paused")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestWorkflow_DeleteCascades(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	keep := env.SaveWorkflow(t, testutil.NewWorkflow(triggers.OrderStatusChangesName, testutil.WithDelay(time.Hour)))
	drop := env.SaveWorkflow(t, testutil.NewWorkflow(triggers.OrderStatusChangesName, testutil.WithDelay(time.Hour)))

	for _, wf := range []*models.Workflow{keep, drop} {
		_, err := env.Service.Queue(t.Context(), wf, env.OrderLayer(t, testutil.BigOrderID))
		require.NoError(t, err)
		require.NoError(t, env.Persistence.LogRepository().Create(t.Context(), &models.Log{WorkflowID: wf.ID}))
	}

	require.NoError(t, service.Delete(t.Context(), drop.ID))

	_, err := service.FetchByID(t.Context(), drop.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	queued := env.Queued(t)
	require.Len(t, queued, 1)
	assert.Equal(t, keep.ID, queued[0].WorkflowID)

	logs := env.Logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, keep.ID, logs[0].WorkflowID)

	err = service.Delete(t.Context(), drop.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflow_DisableAndDeleteCancelBatchStart(t *testing.T) {
	env := testutil.NewEnv(t)
	runner := newBatchRunner(env)
	require.NoError(t, runner.Register(t.Context(), nil))

	service := NewWorkflow(log.Discard(), env.Persistence, env.Registry, env.Settings, env.Active, env.Service, runner)

	later := func() *models.Workflow {
		return env.SaveWorkflow(t, testutil.NewWorkflow(triggers.SubscriptionBeforeRenewalName,
			testutil.WithOption(triggers.OptionTimeOfDay, "18:00")))
	}

	disabled := later()
	deleted := later()
	kept := later()

	require.NoError(t, runner.Tick(t.Context(), nil))
	require.Len(t, env.Scheduler.Pending(), 3)

	_, err := service.SetStatus(t.Context(), disabled.ID, models.WorkflowStatusDisabled)
	require.NoError(t, err)
	require.NoError(t, service.Delete(t.Context(), deleted.ID))

	pending := env.Scheduler.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, kept.ID, pending[0].Args["workflow_id"])
}

func TestWorkflow_ListWorkflows(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	for i := range 3 {
		wf := testutil.NewWorkflow(triggers.OrderCreatedName)
		wf.Order = i
		env.SaveWorkflow(t, wf)
	}

	env.SaveWorkflow(t, testutil.NewWorkflow(triggers.OrderPaidName, testutil.Disabled()))

	resp, err := service.ListWorkflows(t.Context(), ListWorkflowsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Workflows, 2)
	assert.True(t, resp.HasNextPage)

	resp, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{Status: models.WorkflowStatusDisabled})
	require.NoError(t, err)
	require.Len(t, resp.Workflows, 1)
	assert.Equal(t, triggers.OrderPaidName, resp.Workflows[0].Trigger.Name)
	assert.False(t, resp.HasNextPage)

	resp, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{Trigger: triggers.OrderCreatedName, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Workflows, 1)

	_, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{Status: "paused"})
	assert.True(t, IsValidationError(err))
}

func TestWorkflow_Run(t *testing.T) {
	env := testutil.NewEnv(t)
	service := newWorkflowService(env)

	manual := env.SaveWorkflow(t, testutil.NewWorkflow(triggers.ManualOrderName, testutil.Manual(),
		testutil.WithRule("order_total", "greater_than", 100)))

	logs, err := service.Run(t.Context(), manual.ID, []string{testutil.BigOrderID, testutil.SmallOrderID})
	require.NoError(t, err)
	require.Len(t, logs, 1, "the small order does not match the rules")
	assert.True(t, logs[0].Manual)
	assert.Len(t, env.Mailer.Sent(), 1)

	_, err = service.Run(t.Context(), manual.ID, []string{"999"})
	assert.Error(t, err)

	_, err = service.Run(t.Context(), manual.ID, nil)
	assert.True(t, IsValidationError(err))

	automatic := env.SaveWorkflow(t, testutil.NewWorkflow(triggers.OrderCreatedName))
	_, err = service.Run(t.Context(), automatic.ID, []string{testutil.BigOrderID})
	assert.True(t, IsConflictError(err))

	manual.Status = models.WorkflowStatusDisabled
	env.SaveWorkflow(t, manual)
	_, err = service.Run(t.Context(), manual.ID, []string{testutil.BigOrderID})
	assert.ErrorIs(t, err, ErrWorkflowDisabled)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	service := newWorkflowService(testutil.NewEnv(t))

	msg, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", msg)

	msg, ok = (&Workflow{}).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", msg)
}
