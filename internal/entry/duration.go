package entry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var durationUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "wk": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour, "month": 30 * 24 * time.Hour, "months": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour, "yr": 365 * 24 * time.Hour, "year": 365 * 24 * time.Hour, "years": 365 * 24 * time.Hour,
}

// ParseDuration parses human durations such as "30", "1h 30m",
// "3 minutes", "2 days and 4 hours" or "1.5 hours". A bare number is
// seconds.
func ParseDuration(s string) (time.Duration, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}

	var total time.Duration
	fields := strings.FieldsFunc(text, func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if f == "and" {
			continue
		}
		// Split "90min" into number and unit; a unit may also follow as
		// the next field ("90 min").
		j := strings.IndexFunc(f, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' })
		var num, unit string
		switch {
		case j == 0:
			return 0, fmt.Errorf("invalid duration %q", s)
		case j < 0:
			num = f
			if i+1 >= len(fields) {
				return 0, fmt.Errorf("invalid duration %q: missing unit after %s", s, f)
			}
			i++
			unit = fields[i]
		default:
			num, unit = f[:j], f[j:]
		}
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		scale, ok := durationUnits[unit]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, unit)
		}
		total += time.Duration(n * float64(scale))
	}
	if total == 0 && !strings.ContainsAny(text, "0123456789") {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
