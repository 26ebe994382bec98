// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/actions/clearqueue"
	"github.com/dukex/shopflow/pkg/actions/customertags"
	"github.com/dukex/shopflow/pkg/actions/email"
	logaction "github.com/dukex/shopflow/pkg/actions/log"
	"github.com/dukex/shopflow/pkg/actions/ordernote"
	"github.com/dukex/shopflow/pkg/actions/orderstatus"
	"github.com/dukex/shopflow/pkg/actions/subscriptionstatus"
	"github.com/dukex/shopflow/pkg/actions/webhook"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/registry"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
)

// Components are the collaborators the native components are built over.
type Components struct {
	Store    entities.Store
	Writer   entities.Writer
	Queue    persistence.QueueRepository
	Codec    *datalayer.Codec
	Settings *options.Settings
	Mailer   email.Mailer
	Client   *http.Client
	Now      func() time.Time
}

func registerActionPlugins(reg *registry.Registry, pluginsPath string) error {
	actionPlugins, err := reg.LoadActionPlugins(pluginsPath)
	if err != nil {
		return fmt.Errorf("failed to load action plugins: %w", err)
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

func registerNativeDataTypes(reg *registry.Registry, c Components) {
	for _, dt := range datatypes.Catalog(c.Store) {
		reg.RegisterDataType(dt)
	}
}

func registerNativeRules(reg *registry.Registry, c Components) {
	clock := func() (time.Time, *time.Location) {
		return c.Now(), c.Settings.Location(context.Background())
	}

	for _, rule := range rules.Builtin(clock) {
		reg.RegisterRule(rule)
	}
}

func registerNativeActions(log *slog.Logger, reg *registry.Registry, c Components) {
	for _, action := range []actions.Action{
		email.New(c.Mailer),
		orderstatus.New(c.Writer),
		ordernote.New(c.Writer),
		customertags.New(c.Writer),
		subscriptionstatus.New(c.Writer),
		clearqueue.New(c.Queue, c.Codec),
		webhook.New(log, c.Client),
		logaction.New(log),
	} {
		reg.RegisterAction(action)
	}
}

func registerNativeTriggers(log *slog.Logger, reg *registry.Registry, c Components) error {
	env := triggers.Env{
		Store:    c.Store,
		Codec:    c.Codec,
		Logger:   log,
		Location: c.Settings.Location,
		Now:      c.Now,
	}

	for _, trigger := range triggers.Builtin(env) {
		err := reg.RegisterTrigger(trigger)
		if err != nil {
			return err
		}
	}

	return nil
}

func registerNativeAsyncEvents(reg *registry.Registry) {
	for _, event := range asyncevents.Builtin() {
		reg.RegisterAsyncEvent(event)
	}
}

// NewRegistry registers every native component and the action plugins found
// under pluginsPath.
func NewRegistry(ctx context.Context, log *slog.Logger, c Components, pluginsPath string) (*registry.Registry, error) {
	if c.Now == nil {
		c.Now = time.Now
	}

	if c.Client == nil {
		c.Client = &http.Client{}
	}

	reg := registry.NewRegistry(log)

	registerNativeDataTypes(reg, c)
	registerNativeRules(reg, c)
	registerNativeActions(log, reg, c)
	registerNativeAsyncEvents(reg)

	err := registerNativeTriggers(log, reg, c)
	if err != nil {
		return nil, fmt.Errorf("failed to register triggers: %w", err)
	}

	if pluginsPath != "" {
		err = registerActionPlugins(reg, pluginsPath)
		if err != nil {
			return nil, err
		}
	}

	log.InfoContext(ctx, "Registry ready",
		"triggers", len(reg.Triggers()),
		"rules", len(reg.Rules()),
		"actions", len(reg.Actions()),
	)

	return reg, nil
}
