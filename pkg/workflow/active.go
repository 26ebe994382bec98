package workflow

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/persistence"
)

// ActiveTriggers caches the distinct trigger names of active workflows. The
// cache is dropped by Invalidate and whenever the settings version changes.
type ActiveTriggers struct {
	workflows persistence.WorkflowRepository
	settings  *options.Settings

	mu      sync.Mutex
	version string
	names   []string
	loaded  bool
}

func NewActiveTriggers(workflows persistence.WorkflowRepository, settings *options.Settings) *ActiveTriggers {
	return &ActiveTriggers{workflows: workflows, settings: settings}
}

func (a *ActiveTriggers) Names(ctx context.Context) ([]string, error) {
	version := a.settings.Version(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded && a.version == version {
		return slices.Clone(a.names), nil
	}

	workflows, err := a.workflows.List(ctx, persistence.ListWorkflowsOptions{Status: models.WorkflowStatusActive})
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	names := make([]string, 0, len(workflows))

	for _, wf := range workflows {
		if !slices.Contains(names, wf.Trigger.Name) {
			names = append(names, wf.Trigger.Name)
		}
	}

	slices.Sort(names)

	a.names = names
	a.version = version
	a.loaded = true

	return slices.Clone(names), nil
}

func (a *ActiveTriggers) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loaded = false
	a.names = nil
}
