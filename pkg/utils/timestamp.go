package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	isoLayout = "2006-01-02T15:04:05"
	sqlLayout = "2006-01-02 15:04:05"
	utcOffset = "+00:00"
)

var isoTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?([+-]\d{2}:\d{2})$`)

func fraction(precision int) string {
	if precision <= 0 {
		return ""
	}
	return "." + strings.Repeat("0", precision)
}

// FormatTimestamp renders t in UTC as ISO-8601 with an explicit +00:00 offset
// and exactly precision fractional digits
func FormatTimestamp(t time.Time, precision int) string {
	return t.UTC().Format(isoLayout+fraction(precision)) + utcOffset
}

// ParseTimestamp parses an ISO-8601 timestamp carrying an explicit offset and
// returns it in UTC together with the number of fractional digits it carried
func ParseTimestamp(s string) (time.Time, int, error) {
	m := isoTimestampPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, 0, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", s, err)
	}
	precision := 0
	if m[1] != "" {
		precision = len(m[1]) - 1
	}
	return t.UTC(), precision, nil
}

// Now returns the current UTC time truncated to the given fractional digits
func Now(precision int) time.Time {
	return Truncate(time.Now().UTC(), precision)
}

// Truncate drops the fractional digits of t beyond precision
func Truncate(t time.Time, precision int) time.Time {
	unit := time.Second
	for i := 0; i < precision && i < 9; i++ {
		unit /= 10
	}
	return t.Truncate(unit)
}

// ToSQLDateTime renders t in UTC in the DATETIME literal form MySQL accepts
func ToSQLDateTime(t time.Time, precision int) string {
	return t.UTC().Format(sqlLayout + fraction(precision))
}

// FromSQLDateTime converts a DATETIME value read from the driver into an
// ISO-8601 string with a +00:00 offset. The driver returns time.Time with
// parseTime enabled and raw bytes otherwise.
func FromSQLDateTime(val interface{}, precision int) (string, error) {
	switch v := val.(type) {
	case time.Time:
		return FormatTimestamp(v, precision), nil
	case []byte:
		return FromSQLDateTime(string(v), precision)
	case string:
		layout := sqlLayout
		if i := strings.IndexByte(v, '.'); i >= 0 {
			layout += "." + strings.Repeat("0", len(v)-i-1)
		}
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err != nil {
			if parsed, _, isoErr := ParseTimestamp(v); isoErr == nil {
				return FormatTimestamp(parsed, precision), nil
			}
			return "", fmt.Errorf("invalid DATETIME value %q: %w", v, err)
		}
		return FormatTimestamp(t, precision), nil
	}
	return "", fmt.Errorf("unsupported DATETIME value of type %T", val)
}
