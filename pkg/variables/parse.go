package variables

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type param struct {
	name string
	arg  string
}

type expression struct {
	variable string
	params   []param
}

func (e expression) fallback() string {
	for _, p := range e.params {
		if p.name == "fallback" {
			return p.arg
		}
	}

	return ""
}

var (
	variableNamePattern = regexp.MustCompile(`^[a-z_]+\.[a-z_]+$`)
	paramNamePattern    = regexp.MustCompile(`^[a-z_]+$`)
)

// parse splits "type.field | name: 'arg', other" into its parts. Separators
// inside quotes are kept.
func parse(body string) (expression, bool) {
	parts := splitOutsideQuotes(body, '|', ',')
	if len(parts) == 0 {
		return expression{}, false
	}

	name := strings.TrimSpace(parts[0])
	if !variableNamePattern.MatchString(name) {
		return expression{}, false
	}

	expr := expression{variable: name}

	for _, raw := range parts[1:] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		key, arg, hasArg := strings.Cut(raw, ":")
		key = strings.TrimSpace(key)

		if !paramNamePattern.MatchString(key) {
			return expression{}, false
		}

		p := param{name: key}

		if hasArg {
			value, ok := unquote(strings.TrimSpace(arg))
			if !ok {
				return expression{}, false
			}

			p.arg = value
		}

		expr.params = append(expr.params, p)
	}

	return expr, true
}

func splitOutsideQuotes(s string, seps ...rune) []string {
	var (
		parts []string
		cur   strings.Builder
		quote rune
	)

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}

			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case strings.ContainsRune(string(seps), r):
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}

	return append(parts, cur.String())
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}

	if s != "" && !strings.ContainsAny(s, `'"`) {
		return s, true
	}

	return "", false
}

var modifyPattern = regexp.MustCompile(`^([+-]?\d+)\s*(minute|hour|day|week|month|year)s?$`)

// modify shifts t by an expression such as "+1 day" or "-2 hours".
func modify(t time.Time, expr string) (time.Time, bool) {
	m := modifyPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(expr)))
	if m == nil {
		return t, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return t, false
	}

	switch m[2] {
	case "minute":
		return t.Add(time.Duration(n) * time.Minute), true
	case "hour":
		return t.Add(time.Duration(n) * time.Hour), true
	case "day":
		return t.AddDate(0, 0, n), true
	case "week":
		return t.AddDate(0, 0, 7*n), true
	case "month":
		return t.AddDate(0, n, 0), true
	default:
		return t.AddDate(n, 0, 0), true
	}
}

var phpLayout = map[rune]string{
	'Y': "2006", 'y': "06", 'm': "01", 'n': "1", 'd': "02", 'j': "2",
	'H': "15", 'G': "15", 'h': "03", 'g': "3", 'i': "04", 's': "05",
	'A': "PM", 'a': "pm", 'M': "Jan", 'F': "January", 'D': "Mon", 'l': "Monday",
}

// goLayout accepts either a Go reference layout or a Y-m-d style format.
func goLayout(format string) string {
	if strings.ContainsAny(format, "0123456789") {
		return format
	}

	var b strings.Builder

	for _, r := range format {
		if layout, ok := phpLayout[r]; ok {
			b.WriteString(layout)

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}
