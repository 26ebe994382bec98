// Package ordernote provides the add_order_note action.
package ordernote

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/entities"
)

const Name = "add_order_note"

type config struct {
	Note string `json:"note" validate:"required"`
}

type Action struct {
	writer entities.Writer
}

func New(writer entities.Writer) *Action {
	return &Action{writer: writer}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Add Order Note" }
func (a *Action) Group() string       { return "Order" }
func (a *Action) Description() string { return "Adds a private note to the order." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "note", Title: "Note", Type: actions.FieldTextarea, Required: true, ProcessVariables: true},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	order := run.DataLayer.Order()
	if order == nil {
		return fmt.Errorf("%w: order", actions.ErrMissingDataItem)
	}

	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	err = a.writer.AddOrderNote(ctx, order.ID, cfg.Note)
	if err != nil {
		return fmt.Errorf("failed to add note to order %s: %w", order.ID, err)
	}

	return nil
}
