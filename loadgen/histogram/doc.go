// Package histogram provides a concurrent store of per-label latency histograms.
//
// A Store maps an operation class label to a bounded histogram of observed
// latencies in microseconds. Entries are created lazily on the first report
// of a label and are mutated in place afterwards, never replaced or evicted,
// so a Store stays valid and writable for as long as completions may arrive.
//
// Writers of different labels never contend: the store-level lock only guards
// entry lookup and creation, and every entry carries its own lock. Get takes a
// consistent Snapshot under that entry lock for a bounded critical section.
//
// Observations at or above the configured range are clamped into the top
// bucket and still counted.
//
// Buckets are HDR log-linear, not evenly spaced. With the default three significant
// figures values below 2048µs keep 1µs resolution, while a value near the one-second
// top of the default range resolves to a 512µs wide bucket.
package histogram
