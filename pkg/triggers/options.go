package triggers

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/models"
)

// listOption reads a list option given as a comma separated string or a
// JSON array.
func listOption(wf *models.Workflow, name string) []string {
	v, ok := wf.Trigger.Option(name)
	if !ok {
		return nil
	}

	switch value := v.(type) {
	case string:
		return actions.SplitList(value)
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func intOption(wf *models.Workflow, name string, def int) int {
	v, ok := wf.Trigger.Option(name)
	if !ok {
		return def
	}

	switch value := v.(type) {
	case int:
		return value
	case float64:
		return int(value)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return def
		}

		return n
	default:
		return def
	}
}

func stringOption(wf *models.Workflow, name string) string {
	v, ok := wf.Trigger.Option(name)
	if !ok || v == nil {
		return ""
	}

	return strings.TrimSpace(fmt.Sprint(v))
}

// allowed reports whether value passes a list filter; an empty filter
// allows everything.
func allowed(filter []string, value string) bool {
	return len(filter) == 0 || slices.Contains(filter, value)
}
