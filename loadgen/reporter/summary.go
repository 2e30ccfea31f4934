package reporter

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
)

// SummaryTag prefixes the single machine-greppable summary line.
const SummaryTag = "GREPABLE SUMMARY"

// Summary is the end-of-run report: target and achieved rates plus one snapshot per class.
type Summary struct {
	RunID         string               `json:"run_id"`
	TargetPerMs   int64                `json:"target_tpms"`
	AchievedPerMs float64              `json:"achieved_tpms"`
	Snapshots     []histogram.Snapshot `json:"classes"`
}

// NewSummary builds a Summary from the store's current snapshots.
func NewSummary(runID string, targetPerMs int64, achievedPerMs float64, store *histogram.Store) Summary {
	return Summary{
		RunID:         runID,
		TargetPerMs:   targetPerMs,
		AchievedPerMs: achievedPerMs,
		Snapshots:     store.Snapshots(),
	}
}

// String renders the summary as one line of colon separated key:value pairs.
func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s:target_tpms:%d:achieved_tpms:%.3f:run_id:%s",
		SummaryTag, s.TargetPerMs, s.AchievedPerMs, s.RunID)

	for _, snapshot := range s.Snapshots {
		b.WriteByte(' ')
		b.WriteString(snapshot.ShortString())
	}

	return b.String()
}

// JSON renders the summary as a JSON document.
func (s Summary) JSON() ([]byte, error) {
	return jsoniter.ConfigFastest.MarshalIndent(s, "", "  ")
}
