package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the DD/MM/YYYY HH:MM:SS pattern of the "Próximo" column.
const TimestampLayout = "02/01/2006 15:04:05"

var (
	clockRe   = regexp.MustCompile(`^(?:(\d+)\s+days?,?\s+)?(\d+):(\d{1,2}):(\d{1,2})(?:\.(\d{1,9}))?$`)
	displayRe = regexp.MustCompile(`^(\d+)\s*min(?:\s+(\d+)\s*sec)?$`)
)

var blankMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"nat":  true,
	"none": true,
	"null": true,
}

func isBlank(s string) bool {
	return blankMarkers[strings.ToLower(strings.TrimSpace(s))]
}

// ParseDuration reads a handling time written as H:MM:SS, as pandas timedelta
// text ("0 days 00:01:30") or as the display form "<m> min <s> sec". The
// second return value is false when the text is blank or malformed.
func ParseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return 0, false
	}

	if m := displayRe.FindStringSubmatch(s); m != nil {
		minutes, _ := strconv.ParseInt(m[1], 10, 64)
		var seconds int64
		if m[2] != "" {
			seconds, _ = strconv.ParseInt(m[2], 10, 64)
		}
		if seconds >= 60 {
			return 0, false
		}
		return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, true
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	var days int64
	if m[1] != "" {
		days, _ = strconv.ParseInt(m[1], 10, 64)
	}
	hours, _ := strconv.ParseInt(m[2], 10, 64)
	minutes, _ := strconv.ParseInt(m[3], 10, 64)
	seconds, _ := strconv.ParseInt(m[4], 10, 64)
	if minutes >= 60 || seconds >= 60 {
		return 0, false
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if frac := m[5]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		nanos, _ := strconv.ParseInt(frac, 10, 64)
		d += time.Duration(nanos)
	}
	return d, true
}

// ParseTimestamp parses the DD/MM/YYYY HH:MM:SS form in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDuration renders "<m> min <s> sec" from the truncated second count.
// A nil duration renders as "0 min".
func FormatDuration(d *time.Duration) string {
	if d == nil {
		return "0 min"
	}
	total := int64(*d / time.Second)
	return fmt.Sprintf("%d min %d sec", total/60, total%60)
}

// FormatClock renders d as H:MM:SS, the text form written on export.
func FormatClock(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
