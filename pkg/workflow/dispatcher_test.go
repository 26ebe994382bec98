package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/triggers"
)

func TestDispatcher_MaybeRun(t *testing.T) {
	h := newHarness(t)

	second := statusWorkflow(models.Timing{})
	second.Title = "second"
	second.Order = 2
	second.Actions[0].Options["subject"] = "second"
	h.saveWorkflow(t, second)

	first := statusWorkflow(models.Timing{})
	first.Title = "first"
	first.Order = 1
	first.Actions[0].Options["subject"] = "first"
	h.saveWorkflow(t, first)

	disabled := statusWorkflow(models.Timing{})
	disabled.Status = models.WorkflowStatusDisabled
	h.saveWorkflow(t, disabled)

	otherTrigger := statusWorkflow(models.Timing{})
	otherTrigger.Trigger = models.TriggerConfig{Name: triggers.OrderCreatedName}
	h.saveWorkflow(t, otherTrigger)

	d := NewDispatcher(log.Discard(), h.service, h.persistence.WorkflowRepository())

	err := d.MaybeRun(t.Context(), triggers.OrderStatusChangesName, h.orderLayer(t, "501"))
	require.NoError(t, err)

	require.Equal(t, 2, h.mailer.count())
	assert.Equal(t, "first", h.mailer.sent[0].Subject)
	assert.Equal(t, "second", h.mailer.sent[1].Subject)
}

func TestDispatcher_ReportsFailuresAndContinues(t *testing.T) {
	h := newHarness(t)

	broken := statusWorkflow(models.Timing{Type: models.TimingFixed})
	broken.Order = 1
	h.saveWorkflow(t, broken)

	ok := statusWorkflow(models.Timing{})
	ok.Order = 2
	h.saveWorkflow(t, ok)

	d := NewDispatcher(log.Discard(), h.service, h.persistence.WorkflowRepository())

	err := d.MaybeRun(t.Context(), triggers.OrderStatusChangesName, h.orderLayer(t, "501"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTiming)
	assert.Contains(t, err.Error(), broken.ID)
	assert.Equal(t, 1, h.mailer.count())
}

func TestActiveTriggers(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	active := NewActiveTriggers(h.persistence.WorkflowRepository(), h.settings)

	names, err := active.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	h.saveWorkflow(t, statusWorkflow(models.Timing{}))
	h.saveWorkflow(t, statusWorkflow(models.Timing{}))
	h.saveWorkflow(t, &models.Workflow{Title: "off", Status: models.WorkflowStatusDisabled, Trigger: models.TriggerConfig{Name: triggers.CartAbandonedName}})

	names, err = active.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "served from cache")

	_, err = h.settings.BumpVersion(ctx)
	require.NoError(t, err)

	names, err = active.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{triggers.OrderStatusChangesName}, names)

	h.saveWorkflow(t, &models.Workflow{Title: "paid", Trigger: models.TriggerConfig{Name: triggers.OrderPaidName}})
	active.Invalidate()

	names, err = active.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{triggers.OrderPaidName, triggers.OrderStatusChangesName}, names)
}
