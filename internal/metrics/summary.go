package metrics

import (
	"sort"
	"time"
)

type Summary struct {
	Completed    int
	Reclassified int
	InProgress   int
	Total        int
	// MeanHandlingTime is nil when no completed record carries a duration.
	MeanHandlingTime *time.Duration
}

// MeanDisplay is the mean handling time as shown on the dashboard cards.
func (s Summary) MeanDisplay() string {
	return FormatDuration(s.MeanHandlingTime)
}

// DailyTMO is the time-weighted average handling time of one calendar day.
type DailyTMO struct {
	Date    time.Time
	Minutes float64
	Count   int
}

// StatusShare is one slice of the status distribution chart.
type StatusShare struct {
	Status  Status
	Label   string
	Count   int
	Percent float64
}

func Summarize(ds Dataset) Summary {
	s := Summary{Total: len(ds)}
	var sum time.Duration
	var n int
	for _, r := range ds {
		switch r.Status {
		case StatusCompleted:
			s.Completed++
			if r.AnalysisDuration != nil {
				sum += *r.AnalysisDuration
				n++
			}
		case StatusReclassified:
			s.Reclassified++
		case StatusInProgress:
			s.InProgress++
		}
	}
	if n > 0 {
		s.MeanHandlingTime = durationPtr(sum / time.Duration(n))
	}
	return s
}

// Distribution returns the three named status buckets in display order.
// Percentages are relative to the named buckets only.
func (s Summary) Distribution() []StatusShare {
	shares := []StatusShare{
		{Status: StatusCompleted, Count: s.Completed},
		{Status: StatusReclassified, Count: s.Reclassified},
		{Status: StatusInProgress, Count: s.InProgress},
	}
	named := s.Completed + s.Reclassified + s.InProgress
	for i := range shares {
		shares[i].Label = shares[i].Status.Label()
		if named > 0 {
			shares[i].Percent = float64(shares[i].Count) / float64(named) * 100
		}
	}
	return shares
}

// DailyAverageHandlingTime groups completed records by the calendar date of
// ScheduledAt and averages their durations in minutes. Records without a
// timestamp or a duration do not contribute; days are sorted ascending.
func DailyAverageHandlingTime(ds Dataset) []DailyTMO {
	type bucket struct {
		date  time.Time
		total time.Duration
		count int
	}
	buckets := make(map[int]*bucket)
	for _, r := range ds {
		if r.Status != StatusCompleted || r.ScheduledAt == nil || r.AnalysisDuration == nil {
			continue
		}
		key := dayKey(*r.ScheduledAt)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{date: startOfDay(*r.ScheduledAt)}
			buckets[key] = b
		}
		b.total += *r.AnalysisDuration
		b.count++
	}

	out := make([]DailyTMO, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, DailyTMO{
			Date:    b.date,
			Minutes: b.total.Minutes() / float64(b.count),
			Count:   b.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return dayKey(out[i].Date) < dayKey(out[j].Date)
	})
	return out
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
