// Package orderstatus provides the change_order_status action.
package orderstatus

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/entities"
)

const Name = "change_order_status"

var statuses = []string{
	entities.OrderStatusPending, entities.OrderStatusProcessing, entities.OrderStatusOnHold,
	entities.OrderStatusCompleted, entities.OrderStatusCancelled, entities.OrderStatusRefunded,
	entities.OrderStatusFailed,
}

type config struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type Action struct {
	writer entities.Writer
}

func New(writer entities.Writer) *Action {
	return &Action{writer: writer}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Change Order Status" }
func (a *Action) Group() string       { return "Order" }
func (a *Action) Description() string { return "Moves the order to another status." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "status", Title: "Order Status", Type: actions.FieldSelect, Required: true, Options: statuses},
		{Name: "note", Title: "Order Note", Type: actions.FieldText, ProcessVariables: true},
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

	err = a.writer.UpdateOrderStatus(ctx, order.ID, cfg.Status, cfg.Note)
	if err != nil {
		return fmt.Errorf("failed to change order %s status: %w", order.ID, err)
	}

	run.AddNote(fmt.Sprintf("Order status changed from %s to %s", order.Status, cfg.Status))

	return nil
}
