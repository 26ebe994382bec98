package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, n)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// toStrings accepts a list, a single string or a comma separated string.
func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, toString(item))
		}

		return out
	case string:
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))

		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}

		return out
	case nil:
		return nil
	default:
		return []string{toString(s)}
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "yes", "true", "1":
			return true, nil
		case "no", "false", "0":
			return false, nil
		}
	}

	return false, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, v)
}

func toTime(v any, loc *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
			parsed, err := time.ParseInLocation(layout, strings.TrimSpace(t), loc)
			if err == nil {
				return parsed, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("%w: %v is not a date", ErrInvalidValue, v)
}

// period is the value of is_in_the_last rules, e.g. {"amount": 7, "unit": "days"}
// or "7 days".
func toPeriod(v any) (time.Duration, error) {
	var (
		amount float64
		unit   string
		err    error
	)

	switch p := v.(type) {
	case map[string]any:
		amount, err = toFloat(p["amount"])
		if err != nil {
			return 0, err
		}

		unit = toString(p["unit"])
	case string:
		fields := strings.Fields(p)
		if len(fields) != 2 {
			return 0, fmt.Errorf("%w: %q is not a period", ErrInvalidValue, p)
		}

		amount, err = toFloat(fields[0])
		if err != nil {
			return 0, err
		}

		unit = fields[1]
	default:
		return 0, fmt.Errorf("%w: %T is not a period", ErrInvalidValue, v)
	}

	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "minute":
		return time.Duration(amount * float64(time.Minute)), nil
	case "hour":
		return time.Duration(amount * float64(time.Hour)), nil
	case "day":
		return time.Duration(amount * float64(24*time.Hour)), nil
	case "week":
		return time.Duration(amount * float64(7*24*time.Hour)), nil
	default:
		return 0, fmt.Errorf("%w: unknown period unit %q", ErrInvalidValue, unit)
	}
}
