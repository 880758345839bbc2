package handler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	wordUnits = strings.NewReplacer(
		" days", "d", " day", "d",
		" hours", "h", " hour", "h",
		" minutes", "m", " minute", "m",
		" seconds", "s", " second", "s",
		" ", "",
	)
	dayPrefixRegex = regexp.MustCompile(`^(\d+)d(.*)$`)
)

// ParseInterval converts a user-supplied time interval into seconds.
// Accepted forms: plain integer seconds ("3600"), duration strings
// ("1h30m", "15m"), day-suffixed strings ("2d", "1d12h") and word
// forms ("15 minutes", "2 days").
func ParseInterval(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return seconds, nil
	}

	s = wordUnits.Replace(s)

	var total int64
	if matches := dayPrefixRegex.FindStringSubmatch(s); matches != nil {
		days, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		total = days * 86400
		s = matches[2]
		if s == "" {
			return total, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	return total + int64(d.Seconds()), nil
}
