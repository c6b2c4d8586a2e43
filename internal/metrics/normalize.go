package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalize converts imported rows into typed records. It never drops a row:
// malformed durations and timestamps become nil fields.
func Normalize(rows []RawRow) Dataset {
	out := make(Dataset, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalizeRow(row))
	}
	return out
}

func normalizeRow(row RawRow) Record {
	return Record{
		Protocol:         NormalizeProtocol(row.Protocol),
		User:             text(row.User),
		Status:           Status(text(row.Status)),
		AnalysisDuration: toDuration(row.AnalysisDuration),
		ScheduledAt:      toTimestamp(row.ScheduledAt),
		Portfolio:        text(row.Portfolio),
	}
}

// NormalizeProtocol returns the display form of a protocol identifier with
// thousands separators removed.
func NormalizeProtocol(v any) string {
	return strings.ReplaceAll(text(v), ",", "")
}

func text(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return ""
	}
	return s
}

func toDuration(v any) *time.Duration {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Duration:
		if x < 0 {
			return nil
		}
		return durationPtr(x)
	case *time.Duration:
		if x == nil || *x < 0 {
			return nil
		}
		return durationPtr(*x)
	}
	d, ok := ParseDuration(text(v))
	if !ok {
		return nil
	}
	return durationPtr(d)
}

func toTimestamp(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return timePtr(x)
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		return timePtr(*x)
	}
	t, ok := ParseTimestamp(text(v))
	if !ok {
		return nil
	}
	return timePtr(t)
}
