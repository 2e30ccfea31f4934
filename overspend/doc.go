// Package overspend implements the campaign overspend simulation that drives the load generator.
//
// The simulation runs three phases against a Backend that knows the procedures from
// Procedures: it deletes the campaigns of an earlier run, creates fresh campaigns each
// with a fixed number of ads, and then reports random click spend against random ads for
// a fixed duration while periodically counting campaigns whose spend exceeds their budget.
// Latencies of every operation class end up in one histogram store, rendered as the final
// summary line.
package overspend
