// Package customertags provides the add_customer_tags action.
package customertags

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/entities"
)

const Name = "add_customer_tags"

type config struct {
	Tags string `json:"tags" validate:"required"`
}

type Action struct {
	writer entities.Writer
}

func New(writer entities.Writer) *Action {
	return &Action{writer: writer}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Add Customer Tags" }
func (a *Action) Group() string       { return "Customer" }
func (a *Action) Description() string { return "Adds tags to the customer." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "tags", Title: "Tags", Type: actions.FieldText, Required: true, ProcessVariables: true,
			Description: "Comma separated list of tags."},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	customer := run.DataLayer.Customer()
	if customer == nil {
		return fmt.Errorf("%w: customer", actions.ErrMissingDataItem)
	}

	if customer.IsGuest {
		return fmt.Errorf("guest customer %s cannot be tagged", customer.Email)
	}

	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	tags := actions.SplitList(cfg.Tags)

	err = a.writer.AddCustomerTags(ctx, customer.ID, tags)
	if err != nil {
		return fmt.Errorf("failed to tag customer %s: %w", customer.ID, err)
	}

	return nil
}
