package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/actions"
	logaction "github.com/dukex/shopflow/pkg/actions/log"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()

	store := entities.NewMemoryStore()
	r := NewRegistry(log.Discard())

	for _, dt := range datatypes.Catalog(store) {
		r.RegisterDataType(dt)
	}

	for _, rule := range rules.Builtin(rules.SystemClock(func() *time.Location { return time.UTC })) {
		r.RegisterRule(rule)
	}

	r.RegisterAction(logaction.New(log.Discard()))

	env := triggers.Env{Store: store, Codec: datalayer.NewCodec(log.Discard(), datatypes.Catalog(store), nil), Logger: log.Discard()}
	for _, trigger := range triggers.Builtin(env) {
		require.NoError(t, r.RegisterTrigger(trigger))
	}

	for _, e := range asyncevents.Builtin() {
		r.RegisterAsyncEvent(e)
	}

	return r
}

func TestRegistry_Lookups(t *testing.T) {
	r := newRegistry(t)

	_, ok := r.Rule("order_total")
	assert.True(t, ok)

	_, ok = r.Action(logaction.Name)
	assert.True(t, ok)

	_, ok = r.Trigger(triggers.OrderPaidName)
	assert.True(t, ok)

	_, ok = r.DataType(datatypes.OrderItem)
	assert.True(t, ok)

	assert.Equal(t, []string{asyncevents.OrderPaid}, r.RequiredAsyncEvents(triggers.OrderPaidName))
	assert.Nil(t, r.RequiredAsyncEvents("nope"))

	assert.Len(t, r.DataTypes(), len(datatypes.All()))
	assert.Equal(t, datatypes.Order, r.DataTypes()[0].Name())
	assert.Len(t, r.AsyncEvents(), 6)
	assert.Len(t, r.BatchedTriggers(), 2)

	names := make([]string, 0)
	for _, trigger := range r.Triggers() {
		names = append(names, trigger.Name())
	}

	assert.IsNonDecreasing(t, names)
}

func TestRegistry_DuplicateTrigger(t *testing.T) {
	r := newRegistry(t)

	err := r.RegisterTrigger(triggers.NewOrderPaid(triggers.Env{}))
	require.ErrorIs(t, err, ErrDuplicateRegister)
}

func TestRegistry_ValidateWorkflow(t *testing.T) {
	r := newRegistry(t)

	valid := func() *models.Workflow {
		return &models.Workflow{
			Title:   "Big orders",
			Status:  models.WorkflowStatusActive,
			Type:    models.WorkflowTypeAutomatic,
			Trigger: models.TriggerConfig{Name: triggers.OrderStatusChangesName, Options: map[string]any{triggers.OptionToStatus: "processing"}},
			Rules:   []models.RuleConfig{{Name: "order_total", Compare: "greater_than", Value: 100}},
			Actions: []models.ActionConfig{{Name: logaction.Name, Options: map[string]any{"message": "big order {{ order.id }}"}}},
		}
	}

	tests := []struct {
		name   string
		mutate func(wf *models.Workflow)
		err    error
	}{
		{"valid", func(*models.Workflow) {}, nil},
		{"unknown trigger", func(wf *models.Workflow) { wf.Trigger.Name = "nope" }, ErrNotRegistered},
		{"unknown trigger option", func(wf *models.Workflow) { wf.Trigger.Options["color"] = "red" }, actions.ErrInvalidOptions},
		{"unknown rule", func(wf *models.Workflow) { wf.Rules[0].Name = "nope" }, ErrNotRegistered},
		{"bad operator", func(wf *models.Workflow) { wf.Rules[0].Compare = "starts_with" }, rules.ErrUnsupportedOperator},
		{"unknown action", func(wf *models.Workflow) { wf.Actions[0].Name = "nope" }, ErrNotRegistered},
		{"manual on event trigger", func(wf *models.Workflow) { wf.Type = models.WorkflowTypeManual }, ErrManualTrigger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := valid()
			tt.mutate(wf)

			err := r.ValidateWorkflow(wf)
			if tt.err == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadActionPlugins_EmptyDir(t *testing.T) {
	r := NewRegistry(log.Discard())

	plugins, err := r.LoadActionPlugins(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, plugins)
}
