package histogram

import (
	"slices"
	"sync"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// DefaultMaxLatencyMicros is the default exclusive upper bound of an entry's range (one second).
	DefaultMaxLatencyMicros = int64(1_000_000)

	// DefaultSignificantFigures is the default value precision of every entry.
	DefaultSignificantFigures = 3

	minimumMaxBucket     = int64(3)
	lowestDiscernibleMic = int64(1)
)

// Store is a registry of latency histograms keyed by label, safe for concurrent use.
type Store struct {
	mu                 sync.RWMutex
	entries            map[string]*Entry
	significantFigures int
	defaultMaxBucket   int64
}

// Option defines a functional option for configuring a Store.
type Option func(*Store)

// WithSignificantFigures sets the value precision (1..5) of entries created afterwards.
func WithSignificantFigures(figures int) Option {
	return func(s *Store) {
		if figures >= 1 && figures <= 5 {
			s.significantFigures = figures
		}
	}
}

// WithDefaultMaxBucket sets the range used when a report carries an unusable bucket bound.
func WithDefaultMaxBucket(maxBucket int64) Option {
	return func(s *Store) {
		if maxBucket >= minimumMaxBucket {
			s.defaultMaxBucket = maxBucket
		}
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) *Store {
	s := &Store{
		entries:            make(map[string]*Entry),
		significantFigures: DefaultSignificantFigures,
		defaultMaxBucket:   DefaultMaxLatencyMicros,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Report records one latency observation (microseconds) under label.
// The entry is created on first use with the range [0, maxBucket); later reports keep that range.
// tag is an opaque timestamp marker kept as the entry's last-report tag.
func (s *Store) Report(label string, latencyMicros int64, tag string, maxBucket int64) {
	s.entryFor(label, maxBucket).record(latencyMicros, tag)
}

// ReportFailure counts one failed operation under label without recording a latency.
func (s *Store) ReportFailure(label string, detail string) {
	s.entryFor(label, s.defaultMaxBucket).recordFailure(detail)
}

// Get returns a snapshot of the entry for label, or an empty snapshot if the label is unknown.
func (s *Store) Get(label string) Snapshot {
	s.mu.RLock()
	entry, found := s.entries[label]
	s.mu.RUnlock()

	if !found {
		return Snapshot{Label: label}
	}

	return entry.snapshot()
}

// Labels returns all known labels in sorted order.
func (s *Store) Labels() []string {
	s.mu.RLock()
	labels := make([]string, 0, len(s.entries))
	for label := range s.entries {
		labels = append(labels, label)
	}
	s.mu.RUnlock()

	slices.Sort(labels)

	return labels
}

// Snapshots returns one snapshot per known label, sorted by label.
func (s *Store) Snapshots() []Snapshot {
	labels := s.Labels()
	snapshots := make([]Snapshot, 0, len(labels))
	for _, label := range labels {
		snapshots = append(snapshots, s.Get(label))
	}

	return snapshots
}

// Totals returns the sum of recorded latencies and of failures across all labels.
func (s *Store) Totals() (count int64, failures int64) {
	for _, snapshot := range s.Snapshots() {
		count += snapshot.Count
		failures += snapshot.Failures
	}

	return count, failures
}

func (s *Store) entryFor(label string, maxBucket int64) *Entry {
	s.mu.RLock()
	entry, found := s.entries[label]
	s.mu.RUnlock()

	if found {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, found = s.entries[label]; found {
		return entry
	}

	if maxBucket < minimumMaxBucket {
		maxBucket = s.defaultMaxBucket
	}

	entry = newEntry(label, maxBucket, s.significantFigures)
	s.entries[label] = entry

	return entry
}

// Entry is the live histogram of one label.
type Entry struct {
	mu          sync.Mutex
	label       string
	maxBucket   int64
	histogram   *hdrhistogram.Histogram
	clamped     int64
	failures    int64
	lastTag     string
	lastFailure string
}

func newEntry(label string, maxBucket int64, significantFigures int) *Entry {
	return &Entry{
		label:     label,
		maxBucket: maxBucket,
		histogram: hdrhistogram.New(lowestDiscernibleMic, maxBucket-1, significantFigures),
	}
}

func (e *Entry) record(latencyMicros int64, tag string) {
	clamped := false
	switch {
	case latencyMicros < 0:
		latencyMicros = 0
	case latencyMicros >= e.maxBucket:
		latencyMicros = e.maxBucket - 1
		clamped = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The value is within the trackable range, so RecordValue cannot fail.
	_ = e.histogram.RecordValue(latencyMicros)
	if clamped {
		e.clamped++
	}
	e.lastTag = tag
}

func (e *Entry) recordFailure(detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failures++
	e.lastFailure = detail
}

func (e *Entry) snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := Snapshot{
		Label:       e.label,
		MaxBucket:   e.maxBucket,
		Count:       e.histogram.TotalCount(),
		Failures:    e.failures,
		Clamped:     e.clamped,
		LastTag:     e.lastTag,
		LastFailure: e.lastFailure,
	}

	if snapshot.Count > 0 {
		snapshot.Min = e.histogram.Min()
		snapshot.Max = e.histogram.Max()
		snapshot.Mean = e.histogram.Mean()
		snapshot.P50 = e.histogram.ValueAtQuantile(50)
		snapshot.P95 = e.histogram.ValueAtQuantile(95)
		snapshot.P99 = e.histogram.ValueAtQuantile(99)
		snapshot.P999 = e.histogram.ValueAtQuantile(99.9)
	}

	return snapshot
}
