package triggers

import (
	"context"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/models"
)

const CardExpiresSoonName = "card_expires_soon"

type CardExpiresSoon struct {
	Base
	timeOfDay
	env Env
}

func NewCardExpiresSoon(env Env) *CardExpiresSoon {
	fields := append([]actions.Field{
		{Name: OptionDaysBefore, Title: "Days Before Expiry", Type: actions.FieldNumber, Required: true, Default: 14},
	}, scheduleFields()...)

	return &CardExpiresSoon{
		Base: NewBase(Meta{
			Name:           CardExpiresSoonName,
			Title:          "Saved Card Expiring Soon",
			Description:    "Runs once for each saved card expiring in the configured number of days.",
			Group:          "Customers",
			Supplies:       []datatypes.Name{datatypes.Card, datatypes.Customer},
			Fields:         fields,
			DuplicateGuard: datatypes.Card,
		}),
		env: env,
	}
}

func (t *CardExpiresSoon) BatchForWorkflow(ctx context.Context, wf *models.Workflow, offset, limit int) ([]string, error) {
	loc := t.env.location(ctx)
	from := startOfDay(t.env.now(), loc).AddDate(0, 0, intOption(wf, OptionDaysBefore, 14))

	return t.env.Store.CardsExpiringBetween(ctx, from, from.AddDate(0, 0, 1), offset, limit)
}

func (t *CardExpiresSoon) ProcessItemForWorkflow(ctx context.Context, wf *models.Workflow, id string, d Dispatcher) error {
	dl, err := t.env.cardLayer(ctx, id)
	if err != nil {
		return err
	}

	return d.MaybeRunWorkflow(ctx, wf, dl)
}

func (t *CardExpiresSoon) ValidateBeforeQueuedEvent(_ context.Context, _ *models.Workflow, dl *datalayer.DataLayer) bool {
	return dl.Card() != nil
}
