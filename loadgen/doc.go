// Package loadgen provides the core abstractions of a rate-controlled,
// asynchronous load generator for transactional backends.
//
// This package defines the types shared by all components: operation classes,
// completion handlers, the backend client contract, ad-hoc query results,
// the observability interfaces, and the common error definitions.
//
// Components, leaf first:
//   - histogram: concurrent per-class latency histograms
//   - tracker: per-operation completion tracking
//   - pacer: ops/ms submission throttling
//   - reporter: periodic out-of-band reports and the final summary
//   - dispatch: the rate-controlled dispatch loop
//   - pgbackend: a Backend implementation on top of PostgreSQL
//
// Common usage pattern:
//
//	store := histogram.NewStore()
//	pace, _ := pacer.New(pacer.KindSpin, 10)
//	loop, _ := dispatch.NewLoop(backend, store, pace)
//
//	result, err := loop.Run(ctx, dispatch.Phase{
//		Name:  "run",
//		Until: dispatch.ForDuration(time.Minute),
//		Item: func(i int64) dispatch.Call {
//			return dispatch.Call{Class: "RUN", Procedure: "report_bids", Args: []any{i}}
//		},
//	})
package loadgen
