package datefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Default is applied to date values that declare no format.
const Default = "YYYY-MM-DD"

// moment tokens ordered longest first so YYYY wins over YY.
var momentTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"SSS", "000"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"ZZ", "-0700"},
	{"M", "1"},
	{"D", "2"},
	{"H", "15"},
	{"h", "3"},
	{"m", "4"},
	{"s", "5"},
	{"A", "PM"},
	{"a", "pm"},
	{"Z", "-07:00"},
}

// Layout converts a moment style format (YYYY-MM-DD HH:mm:ss) into a Go
// time layout. Text inside [brackets] is copied literally.
func Layout(format string) string {
	if strings.TrimSpace(format) == "" {
		format = Default
	}
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i:], ']'); end > 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range momentTokens {
			if strings.HasPrefix(format[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// Format renders a date value with a moment style format. Strings are
// parsed leniently, numbers are epoch milliseconds. Empty values return nil.
func Format(value any, format string, loc *time.Location) (any, error) {
	if loc == nil {
		loc = time.Local
	}
	layout := Layout(format)
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if typed.IsZero() {
			return nil, nil
		}
		return typed.In(loc).Format(layout), nil
	case *time.Time:
		if typed == nil || typed.IsZero() {
			return nil, nil
		}
		return typed.In(loc).Format(layout), nil
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := dateparse.ParseIn(trimmed, loc)
		if err != nil {
			return nil, fmt.Errorf("datefmt: parse date %q: %w", trimmed, err)
		}
		return parsed.In(loc).Format(layout), nil
	case float64:
		return time.UnixMilli(int64(typed)).In(loc).Format(layout), nil
	case int64:
		return time.UnixMilli(typed).In(loc).Format(layout), nil
	case int:
		return time.UnixMilli(int64(typed)).In(loc).Format(layout), nil
	default:
		return nil, fmt.Errorf("datefmt: unsupported date value %T", value)
	}
}

// Duration renders a length in seconds as m:ss, or h:mm:ss from one hour on.
// Strings holding numbers are accepted; other values yield "".
func Duration(value any) string {
	var seconds int64
	switch typed := value.(type) {
	case int:
		seconds = int64(typed)
	case int64:
		seconds = typed
	case float64:
		seconds = int64(typed)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return ""
		}
		seconds = int64(parsed)
	default:
		return ""
	}
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
