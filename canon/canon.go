// Package canon centralizes the coercions the insurance dataset needs in one
// place: flexible boolean parsing, ambiguous date normalization, and canonical
// string keys for ids that arrive either as numbers or as strings.
package canon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// truthyTokens is the accepted token set for flexible boolean fields
// (active, insured). Spanish affirmatives are part of the dataset.
var truthyTokens = map[string]struct{}{
	"true": {}, "1": {}, "yes": {}, "y": {}, "t": {}, "si": {}, "sí": {},
}

// Truthy interprets a flexible boolean value. Unset (nil) yields def.
func Truthy(v any, def bool) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "" {
			return def
		}
		_, ok := truthyTokens[s]
		return ok
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return def
	}
}

// Key coerces an identity value to its canonical string form. JSON numbers
// decode as float64; integral values must not pick up a decimal point, so
// Key(float64(7)) == "7".
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// Upper trims and upper-cases a free-form status value.
func Upper(v any) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseDate normalizes the two date encodings that coexist in the dataset:
// ISO YYYY-MM-DD and D/M/YYYY (day first, single digits allowed). Any other
// form is rejected.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if d, err := time.Parse("2006-01-02", s); err == nil {
			return d, true
		}
		if d, err := time.Parse("2/1/2006", s); err == nil {
			return d, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// ISODate renders a parseable date value as YYYY-MM-DD, or "" when the value
// is absent or unparseable.
func ISODate(v any) string {
	d, ok := ParseDate(v)
	if !ok {
		return ""
	}
	return d.Format("2006-01-02")
}

// DMY renders a time in the dataset's day-first form (no zero padding).
func DMY(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
