package clearqueue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/actions/clearqueue"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
)

type call struct {
	workflowID, dataType, token string
}

type fakeClearer struct {
	calls []call
}

func (f *fakeClearer) DeleteForEntity(_ context.Context, workflowID, dataType, token string) (int, error) {
	f.calls = append(f.calls, call{workflowID, dataType, token})

	return 2, nil
}

func TestAction_ClearsMatchingEvents(t *testing.T) {
	store := entities.NewMemoryStore()
	codec := datalayer.NewCodec(log.Discard(), datatypes.Catalog(store), nil)
	clearer := &fakeClearer{}
	a := clearqueue.New(clearer, codec)

	dl := datalayer.MustNew(
		datalayer.Item{Type: datatypes.Order, Value: &entities.Order{ID: "501"}},
		datalayer.Item{Type: datatypes.Customer, Value: &entities.Customer{ID: "c1"}},
	)

	run := actions.NewRun(a, &models.Workflow{ID: "wf-1"}, dl, map[string]any{"workflows": "wf-2, wf-3"}, nil)
	require.NoError(t, a.Run(t.Context(), run))

	assert.Equal(t, []call{{"wf-2", "customer", "c1"}, {"wf-3", "customer", "c1"}}, clearer.calls)
	assert.Equal(t, []string{"Cleared 4 queued event(s)"}, run.Notes())

	clearer.calls = nil
	run = actions.NewRun(a, &models.Workflow{ID: "wf-1"}, dl, map[string]any{"data_item": "order"}, nil)
	require.NoError(t, a.Run(t.Context(), run))
	assert.Equal(t, []call{{"wf-1", "order", "501"}}, clearer.calls)

	run = actions.NewRun(a, &models.Workflow{ID: "wf-1"}, dl, map[string]any{"data_item": "cart"}, nil)
	require.ErrorIs(t, a.Run(t.Context(), run), actions.ErrMissingDataItem)
}
