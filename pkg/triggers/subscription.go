package triggers

import (
	"context"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/models"
)

const (
	SubscriptionStatusChangedName = "subscription_status_changed"
	SubscriptionBeforeRenewalName = "subscription_before_renewal"
	ManualSubscriptionName        = "manual_subscription"
	OptionDaysBefore              = "days_before"
	subscriptionGroup             = "Subscriptions"
)

var subscriptionSupplies = []datatypes.Name{datatypes.Subscription, datatypes.Customer}

type SubscriptionStatusChanged struct {
	Base
	env Env
}

func NewSubscriptionStatusChanged(env Env) *SubscriptionStatusChanged {
	return &SubscriptionStatusChanged{
		Base: NewBase(Meta{
			Name:        SubscriptionStatusChangedName,
			Title:       "Subscription Status Changed",
			Description: "Fires when a subscription moves between the configured statuses.",
			Group:       subscriptionGroup,
			Supplies:    subscriptionSupplies,
			AsyncEvents: []string{asyncevents.SubscriptionStatusChanged},
			Fields: []actions.Field{
				{Name: OptionFromStatus, Title: "Status Changes From", Type: actions.FieldText, Description: orderStatusListHelpText},
				{Name: OptionToStatus, Title: "Status Changes To", Type: actions.FieldText, Description: orderStatusListHelpText},
			},
		}),
		env: env,
	}
}

func (t *SubscriptionStatusChanged) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.SubscriptionStatusChanged, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.SubscriptionStatusChangedEvent](event)
		if !ok {
			return nil
		}

		ctx = WithTransition(ctx, Transition{From: e.From, To: e.To})

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			return t.env.subscriptionLayer(ctx, e.SubscriptionID)
		})
	})
}

func (t *SubscriptionStatusChanged) ValidateWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool {
	sub := dl.Subscription()
	if sub == nil {
		return false
	}

	tr, ok := TransitionFrom(ctx)
	if !ok {
		tr = Transition{To: sub.Status}
	}

	if from := listOption(wf, OptionFromStatus); len(from) > 0 && !allowed(from, tr.From) {
		return false
	}

	return allowed(listOption(wf, OptionToStatus), tr.To)
}

func (t *SubscriptionStatusChanged) ValidateBeforeQueuedEvent(_ context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool {
	sub := dl.Subscription()

	return sub != nil && allowed(listOption(wf, OptionToStatus), sub.Status)
}

// SubscriptionBeforeRenewal scans daily for active subscriptions renewing
// a configured number of days ahead.
type SubscriptionBeforeRenewal struct {
	Base
	timeOfDay
	env Env
}

func NewSubscriptionBeforeRenewal(env Env) *SubscriptionBeforeRenewal {
	fields := append([]actions.Field{
		{Name: OptionDaysBefore, Title: "Days Before Renewal", Type: actions.FieldNumber, Required: true, Default: 3},
	}, scheduleFields()...)

	return &SubscriptionBeforeRenewal{
		Base: NewBase(Meta{
			Name:        SubscriptionBeforeRenewalName,
			Title:       "Subscription Before Renewal",
			Description: "Runs once for each subscription due to renew in the configured number of days.",
			Group:       subscriptionGroup,
			Supplies:    subscriptionSupplies,
			Fields:      fields,
		}),
		env: env,
	}
}

func (t *SubscriptionBeforeRenewal) BatchForWorkflow(ctx context.Context, wf *models.Workflow, offset, limit int) ([]string, error) {
	loc := t.env.location(ctx)
	from := startOfDay(t.env.now(), loc).AddDate(0, 0, intOption(wf, OptionDaysBefore, 3))

	return t.env.Store.SubscriptionsRenewingBetween(ctx, from, from.AddDate(0, 0, 1), offset, limit)
}

func (t *SubscriptionBeforeRenewal) ProcessItemForWorkflow(ctx context.Context, wf *models.Workflow, id string, d Dispatcher) error {
	dl, err := t.env.subscriptionLayer(ctx, id)
	if err != nil {
		return err
	}

	return d.MaybeRunWorkflow(ctx, wf, dl)
}

func (t *SubscriptionBeforeRenewal) ValidateBeforeQueuedEvent(_ context.Context, _ *models.Workflow, dl *datalayer.DataLayer) bool {
	sub := dl.Subscription()

	return sub != nil && sub.Status == entities.SubscriptionStatusActive
}

type ManualSubscription struct {
	Base
	env Env
}

func NewManualSubscription(env Env) *ManualSubscription {
	return &ManualSubscription{
		Base: NewBase(Meta{
			Name:        ManualSubscriptionName,
			Title:       "Subscriptions (Manual)",
			Description: "Runs on selected subscriptions when started by an operator.",
			Group:       subscriptionGroup,
			Supplies:    subscriptionSupplies,
		}),
		env: env,
	}
}

func (t *ManualSubscription) DataLayer(ctx context.Context, id string) (*datalayer.DataLayer, error) {
	return t.env.subscriptionLayer(ctx, id)
}
