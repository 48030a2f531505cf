package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// plainNumber matches decimal literals only; Go-specific forms like hex floats stay text
var plainNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

var truthy = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true,
}

// dateLayouts are tried in order; layouts without a zone are read as UTC
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// js Date range, in milliseconds either side of the epoch
const maxEpochMillis = 8.64e15

// present reports whether a raw value counts as supplied. Only nil and the
// empty string are absent; a whitespace cell is present and coerces later.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case json.Number:
		return x != ""
	}
	return true
}

// stringify renders a raw value the way it would appear in a spreadsheet cell
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// nativeNumber extracts a float from Go numeric types
func nativeNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Number coerces v to a finite float. Strings are stripped of everything but
// digits, '.', and a leading '-', so "12 kills" becomes 12. Anything that still
// fails to parse yields fallback.
func Number(v any, fallback float64) float64 {
	if f, ok := nativeNumber(v); ok {
		if finite(f) {
			return f
		}
		return fallback
	}
	if _, ok := v.(bool); ok {
		return fallback
	}
	if v == nil {
		return fallback
	}
	return parseLoose(stringify(v), fallback)
}

func parseLoose(s string, fallback float64) float64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	if negative {
		cleaned = "-" + cleaned
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !finite(f) {
		return fallback
	}
	return f
}

// strictNumber parses v only if it is already a clean number
func strictNumber(v any) (float64, bool) {
	if f, ok := nativeNumber(v); ok {
		return f, finite(f)
	}
	switch x := v.(type) {
	case string, json.Number:
		s := strings.TrimSpace(stringify(x))
		if !plainNumber.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool reports whether v is one of the truthy tokens 1, true, yes, y
// (trimmed, case-insensitive). Native bools pass through.
func Bool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return truthy[strings.ToLower(strings.TrimSpace(stringify(v)))]
}

// Text trims v and normalizes it to NFC
func Text(v any) string {
	s := strings.ReplaceAll(stringify(v), "\u00a0", " ")
	return strings.TrimSpace(norm.NFC.String(s))
}

// Date parses v as a timestamp. Native numbers are epoch milliseconds.
func Date(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return epochMillis(f)
		}
		return time.Time{}, false
	}
	if f, ok := nativeNumber(v); ok {
		return epochMillis(f)
	}

	s := Text(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func epochMillis(f float64) (time.Time, bool) {
	if !finite(f) || math.Abs(f) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}
