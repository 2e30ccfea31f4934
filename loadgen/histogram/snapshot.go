package histogram

import (
	"fmt"
	"strings"
)

// Snapshot is a point-in-time summary of one label's histogram. Latencies are microseconds.
type Snapshot struct {
	Label       string  `json:"label"`
	MaxBucket   int64   `json:"max_bucket"`
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	Clamped     int64   `json:"clamped"`
	Min         int64   `json:"min_us"`
	Max         int64   `json:"max_us"`
	Mean        float64 `json:"mean_us"`
	P50         int64   `json:"p50_us"`
	P95         int64   `json:"p95_us"`
	P99         int64   `json:"p99_us"`
	P999        int64   `json:"p999_us"`
	LastTag     string  `json:"last_tag,omitempty"`
	LastFailure string  `json:"last_failure,omitempty"`
}

// ShortString renders the snapshot as grep-friendly key:value tokens on one line.
func (s Snapshot) ShortString() string {
	return fmt.Sprintf(
		"%s:count:%d:failures:%d:clamped:%d:min:%d:p50:%d:p95:%d:p99:%d:p999:%d:max:%d:mean:%.1f",
		s.Label, s.Count, s.Failures, s.Clamped, s.Min, s.P50, s.P95, s.P99, s.P999, s.Max, s.Mean,
	)
}

// FormattedString renders the snapshot for humans, one measure per line.
func (s Snapshot) FormattedString() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (microseconds, range 0..%d)\n", s.Label, s.MaxBucket)
	fmt.Fprintf(&b, "  count    %d\n", s.Count)
	fmt.Fprintf(&b, "  failures %d\n", s.Failures)
	fmt.Fprintf(&b, "  clamped  %d\n", s.Clamped)
	if s.Count > 0 {
		fmt.Fprintf(&b, "  min      %d\n", s.Min)
		fmt.Fprintf(&b, "  mean     %.1f\n", s.Mean)
		fmt.Fprintf(&b, "  p50      %d\n", s.P50)
		fmt.Fprintf(&b, "  p95      %d\n", s.P95)
		fmt.Fprintf(&b, "  p99      %d\n", s.P99)
		fmt.Fprintf(&b, "  p99.9    %d\n", s.P999)
		fmt.Fprintf(&b, "  max      %d\n", s.Max)
	}
	if s.LastTag != "" {
		fmt.Fprintf(&b, "  last     %s\n", s.LastTag)
	}

	return b.String()
}
