package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() (time.Time, *time.Location) {
	return fixedNow, time.UTC
}

func testEngine() *Engine {
	rules := append(Builtin(fixedClock), NewExpression())

	return NewEngine(log.Discard(), NewSet(rules...))
}

func orderLayer(order *entities.Order, customer *entities.Customer) *datalayer.DataLayer {
	return datalayer.MustNew(
		datalayer.Item{Type: datatypes.Order, Value: order},
		datalayer.Item{Type: datatypes.Customer, Value: customer},
	)
}

func TestEngine_Match(t *testing.T) {
	engine := testEngine()
	created := fixedNow.Add(-48 * time.Hour)
	dl := orderLayer(
		&entities.Order{ID: "501", Status: "processing", Total: 150, PaymentMethod: "stripe", CreatedAt: created, Items: []entities.OrderItem{{ID: "a"}, {ID: "b"}}},
		&entities.Customer{ID: "c1", Email: "Ada@Example.com", OrderCount: 1, Tags: []string{"vip"}},
	)

	tests := []struct {
		name  string
		rules []models.RuleConfig
		want  bool
	}{
		{"empty conjunction", nil, true},
		{"total greater", []models.RuleConfig{{Name: "order_total", Compare: "greater_than", Value: 100}}, true},
		{"total less", []models.RuleConfig{{Name: "order_total", Compare: "less_than", Value: "100"}}, false},
		{"total multiple of", []models.RuleConfig{{Name: "order_total", Compare: "multiple_of", Value: 50}}, true},
		{"status matches any", []models.RuleConfig{{Name: "order_status", Compare: "matches_any", Value: []any{"completed", "processing"}}}, true},
		{"status matches none", []models.RuleConfig{{Name: "order_status", Compare: "matches_none", Value: "processing"}}, false},
		{"item count", []models.RuleConfig{{Name: "order_item_count", Compare: "is", Value: 2}}, true},
		{"email ends with case insensitive", []models.RuleConfig{{Name: "customer_email", Compare: "ends_with", Value: "@example.com"}}, true},
		{"payment method set", []models.RuleConfig{{Name: "order_payment_method", Compare: "is_set"}}, true},
		{"first order", []models.RuleConfig{{Name: "order_is_customers_first", Compare: "is", Value: "yes"}}, true},
		{"created in last 3 days", []models.RuleConfig{{Name: "order_created_date", Compare: "is_in_the_last", Value: map[string]any{"amount": 3, "unit": "days"}}}, true},
		{"created in last day", []models.RuleConfig{{Name: "order_created_date", Compare: "is_in_the_last", Value: "1 day"}}, false},
		{"created between", []models.RuleConfig{{Name: "order_created_date", Compare: "is_between", Value: []any{"2026-03-01", "2026-03-13"}}}, true},
		{"created after", []models.RuleConfig{{Name: "order_created_date", Compare: "is_after", Value: "2026-03-13"}}, false},
		{"tags", []models.RuleConfig{{Name: "customer_tags", Compare: "matches_all", Value: "vip"}}, true},
		{"expression", []models.RuleConfig{{Name: "expression", Compare: "true", Value: "order.total > 100 && customer.order_count == 1"}}, true},
		{"expression false op", []models.RuleConfig{{Name: "expression", Compare: "false", Value: "order.total > 100"}}, false},
		{"conjunction fails on second", []models.RuleConfig{
			{Name: "order_total", Compare: "greater_than", Value: 100},
			{Name: "customer_is_guest", Compare: "is", Value: true},
		}, false},
		{"unknown rule fails closed", []models.RuleConfig{{Name: "no_such_rule", Compare: "is", Value: 1}}, false},
		{"absent data item fails closed", []models.RuleConfig{{Name: "cart_total", Compare: "greater_than", Value: 0}}, false},
		{"wrong operator fails closed", []models.RuleConfig{{Name: "order_total", Compare: "contains", Value: 1}}, false},
		{"bad value fails closed", []models.RuleConfig{{Name: "order_total", Compare: "is", Value: "lots"}}, false},
		{"bad expression fails closed", []models.RuleConfig{{Name: "expression", Compare: "true", Value: "order.total >"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Match(dl, tt.rules))
		})
	}
}

func TestEngine_MatchIsPure(t *testing.T) {
	engine := testEngine()
	dl := orderLayer(&entities.Order{ID: "1", Total: 120, Status: "processing"}, &entities.Customer{ID: "c1"})
	cfg := []models.RuleConfig{
		{Name: "order_total", Compare: "greater_than", Value: 100},
		{Name: "expression", Compare: "true", Value: "order.status == 'processing'"},
	}

	first := engine.Match(dl, cfg)
	second := engine.Match(dl, cfg)

	assert.True(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, "processing", dl.Order().Status)
}

func TestEngine_MissingItemFailsClosed(t *testing.T) {
	engine := testEngine()
	dl := orderLayer(&entities.Order{ID: "1", Total: 120}, nil)
	dl.MarkMissing(datatypes.Customer)

	assert.False(t, engine.Match(dl, []models.RuleConfig{{Name: "customer_order_count", Compare: "greater_than", Value: -1}}))
}

func TestValidateConfig(t *testing.T) {
	set := NewSet(Builtin(fixedClock)...)
	status, _ := set.Rule("order_status")
	total, _ := set.Rule("order_total")

	require.NoError(t, ValidateConfig(status, models.RuleConfig{Name: "order_status", Compare: "matches_any", Value: []any{"completed"}}))
	require.ErrorIs(t, ValidateConfig(status, models.RuleConfig{Name: "order_status", Compare: "matches_any", Value: "shipped"}), ErrInvalidValue)
	require.ErrorIs(t, ValidateConfig(total, models.RuleConfig{Name: "order_total", Compare: "matches_any", Value: 1}), ErrUnsupportedOperator)
	require.ErrorIs(t, ValidateConfig(total, models.RuleConfig{Name: "order_total", Compare: "is"}), ErrInvalidValue)
}

func TestExpression_CachesPrograms(t *testing.T) {
	e := NewExpression()

	require.NoError(t, e.Compile("order.total > 1"))
	require.NoError(t, e.Compile("order.total > 1"))
	assert.Len(t, e.cache, 1)
	require.Error(t, e.Compile(""))
}
