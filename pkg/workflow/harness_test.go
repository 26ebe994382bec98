package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/actions/email"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/persistence/file"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
	"github.com/dukex/shopflow/pkg/variables"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)

	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sent)
}

type harness struct {
	store       *entities.MemoryStore
	persistence *file.Persistence
	settings    *options.Settings
	codec       *datalayer.Codec
	mailer      *recordingMailer
	triggers    triggers.Set
	service     *Service
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := log.Discard()
	h := &harness{
		store:       entities.NewMemoryStore(),
		persistence: file.NewPersistence(t.TempDir()),
		settings:    options.NewSettings(logger, options.NewMemory()),
		mailer:      &recordingMailer{},
		now:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	h.store.PutCustomer(&entities.Customer{ID: "c1", Email: "ana@example.com", FirstName: "Ana"})
	h.store.PutOrder(&entities.Order{ID: "501", Status: entities.OrderStatusProcessing, CustomerID: "c1", BillingEmail: "ana@example.com", Total: 150})
	h.store.PutOrder(&entities.Order{ID: "502", Status: entities.OrderStatusProcessing, CustomerID: "c1", BillingEmail: "ana@example.com", Total: 20})

	clock := func() time.Time { return h.now }
	location := func() *time.Location { return time.UTC }

	h.codec = datalayer.NewCodec(logger, datatypes.Catalog(h.store), datalayer.NewMemo())
	resolver := variables.NewResolver(logger, location)
	h.triggers = triggers.NewSet(triggers.Builtin(triggers.Env{
		Store:  h.store,
		Codec:  h.codec,
		Logger: logger,
		Now:    clock,
	})...)

	engine := rules.NewEngine(logger, rules.NewSet(rules.Builtin(func() (time.Time, *time.Location) { return h.now, time.UTC })...))
	pipeline := actions.NewPipeline(logger, actions.NewSet(email.New(h.mailer)), resolver)

	h.service = NewService(Deps{
		Logger:      logger,
		Persistence: h.persistence,
		Triggers:    h.triggers,
		Rules:       engine,
		Pipeline:    pipeline,
		Codec:       h.codec,
		Resolver:    resolver,
		Settings:    h.settings,
		Now:         clock,
	})

	return h
}

func (h *harness) orderLayer(t *testing.T, id string) *datalayer.DataLayer {
	t.Helper()

	dl, err := h.triggers[triggers.ManualOrderName].(triggers.ManualTrigger).DataLayer(t.Context(), id)
	require.NoError(t, err)

	return dl
}

func (h *harness) saveWorkflow(t *testing.T, wf *models.Workflow) *models.Workflow {
	t.Helper()

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusActive
	}

	if wf.Type == "" {
		wf.Type = models.WorkflowTypeAutomatic
	}

	require.NoError(t, h.persistence.WorkflowRepository().Save(t.Context(), wf))

	return wf
}

func sendEmail() models.ActionConfig {
	return models.ActionConfig{Name: email.Name, Options: map[string]any{
		"to":      "{{ customer.email }}",
		"subject": "Thanks for order {{ order.id }}",
		"body":    "Hi {{ customer.first_name | fallback: 'there' }}",
	}}
}

func statusWorkflow(timing models.Timing) *models.Workflow {
	return &models.Workflow{
		Title:   "Processing follow up",
		Trigger: models.TriggerConfig{Name: triggers.OrderStatusChangesName, Options: map[string]any{triggers.OptionToStatus: "processing"}},
		Rules:   []models.RuleConfig{{Name: "order_total", Compare: "greater_than", Value: 100}},
		Actions: []models.ActionConfig{sendEmail()},
		Timing:  timing,
	}
}
