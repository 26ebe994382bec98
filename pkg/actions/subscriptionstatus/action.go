// Package subscriptionstatus provides the change_subscription_status action.
package subscriptionstatus

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/entities"
)

const Name = "change_subscription_status"

type config struct {
	Status string `json:"status" validate:"required"`
}

type Action struct {
	writer entities.Writer
}

func New(writer entities.Writer) *Action {
	return &Action{writer: writer}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Change Subscription Status" }
func (a *Action) Group() string       { return "Subscription" }
func (a *Action) Description() string { return "Moves the subscription to another status." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "status", Title: "Subscription Status", Type: actions.FieldSelect, Required: true, Options: []string{
			entities.SubscriptionStatusActive, entities.SubscriptionStatusOnHold, entities.SubscriptionStatusCancelled,
			entities.SubscriptionStatusExpired, entities.SubscriptionStatusPending,
		}},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	sub := run.DataLayer.Subscription()
	if sub == nil {
		return fmt.Errorf("%w: subscription", actions.ErrMissingDataItem)
	}

	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	err = a.writer.UpdateSubscriptionStatus(ctx, sub.ID, cfg.Status)
	if err != nil {
		return fmt.Errorf("failed to change subscription %s status: %w", sub.ID, err)
	}

	run.AddNote(fmt.Sprintf("Subscription status changed from %s to %s", sub.Status, cfg.Status))

	return nil
}
