// Package clearqueue provides the clear_queued_events action, which cancels
// pending runs for the entity of the current data layer.
package clearqueue

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
)

const Name = "clear_queued_events"

// Clearer deletes queued events of a workflow whose snapshot holds token for
// dataType.
type Clearer interface {
	DeleteForEntity(ctx context.Context, workflowID, dataType, token string) (int, error)
}

// Compressor turns a data layer into its stored tokens.
type Compressor interface {
	Compress(dl *datalayer.DataLayer) (datalayer.Compressed, error)
}

type config struct {
	Workflows string `json:"workflows"`
	DataItem  string `json:"data_item" validate:"required,oneof=order customer cart subscription"`
}

type Action struct {
	queue Clearer
	codec Compressor
}

func New(queue Clearer, codec Compressor) *Action {
	return &Action{queue: queue, codec: codec}
}

func (a *Action) Name() string  { return Name }
func (a *Action) Title() string { return "Clear Queued Events" }
func (a *Action) Group() string { return "Workflow" }

func (a *Action) Description() string {
	return "Deletes queued events for the same entity, from this workflow or the listed workflows."
}

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "workflows", Title: "Workflows", Type: actions.FieldText,
			Description: "Comma separated workflow IDs. Leave empty to clear this workflow's queue."},
		{Name: "data_item", Title: "Match On", Type: actions.FieldSelect, Default: string(datatypes.Customer),
			Options: []string{string(datatypes.Order), string(datatypes.Customer), string(datatypes.Cart), string(datatypes.Subscription)}},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	snapshot, err := a.codec.Compress(run.DataLayer)
	if err != nil {
		return fmt.Errorf("failed to compress data layer: %w", err)
	}

	token, ok := snapshot.Get(datatypes.Name(cfg.DataItem))
	if !ok {
		return fmt.Errorf("%w: %s", actions.ErrMissingDataItem, cfg.DataItem)
	}

	workflows := actions.SplitList(cfg.Workflows)
	if len(workflows) == 0 {
		workflows = []string{run.Workflow.ID}
	}

	total := 0

	for _, id := range workflows {
		n, err := a.queue.DeleteForEntity(ctx, id, cfg.DataItem, token)
		if err != nil {
			return fmt.Errorf("failed to clear queued events of workflow %s: %w", id, err)
		}

		total += n
	}

	run.AddNote(fmt.Sprintf("Cleared %d queued event(s)", total))

	return nil
}
