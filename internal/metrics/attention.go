package metrics

import "time"

// DefaultAttentionThreshold is the handling time above which a protocol
// becomes a point of attention.
const DefaultAttentionThreshold = 2 * time.Minute

type AttentionPoint struct {
	Record  Record
	Display string
}

// Flagged returns the records whose duration is strictly greater than
// threshold, in input order. Records without a duration are never flagged.
func Flagged(ds Dataset, threshold time.Duration) []AttentionPoint {
	var out []AttentionPoint
	for _, r := range ds {
		if r.AnalysisDuration == nil || *r.AnalysisDuration <= threshold {
			continue
		}
		r.Protocol = NormalizeProtocol(r.Protocol)
		out = append(out, AttentionPoint{
			Record:  r,
			Display: FormatDuration(r.AnalysisDuration),
		})
	}
	return out
}
