package metrics

import "time"

type Status string

const (
	StatusCompleted    Status = "FINALIZADO"
	StatusReclassified Status = "RECLASSIFICADO"
	StatusInProgress   Status = "ANDAMENTO_PRE"
)

// Record is one protocol as tracked by the dashboard. A nil AnalysisDuration or
// ScheduledAt means the source value was missing or unparseable.
type Record struct {
	Protocol         string
	User             string
	Status           Status
	AnalysisDuration *time.Duration
	ScheduledAt      *time.Time
	Portfolio        string
}

// Dataset keeps insertion order; only accumulation depends on it.
type Dataset []Record

// RawRow is one imported spreadsheet row before normalization. Values may be
// strings, numbers, time values or nil.
type RawRow struct {
	Protocol         any
	User             any
	Status           any
	AnalysisDuration any
	ScheduledAt      any
	Portfolio        any
}

func (s Status) Label() string {
	switch s {
	case StatusCompleted:
		return "Finalizado"
	case StatusReclassified:
		return "Reclassificado"
	case StatusInProgress:
		return "Andamento"
	default:
		return string(s)
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func timePtr(t time.Time) *time.Time { return &t }
