// Package dispatch implements the rate-controlled dispatch loop.
//
// A Loop runs one Phase at a time. Every iteration waits on the Pacer, creates a fresh
// Tracker, and submits one call to the Backend without waiting for its result. A phase
// can submit nested sub-items per iteration through the same Pacer, poll a periodic
// report, and log progress. Once the termination condition holds, the Loop drains the
// Backend so that every tracker has recorded its outcome before Run returns.
//
// Bulk delete, bulk create with nested items, and the continuous benchmark are all
// expressed as a Phase:
//
//	result, err := loop.Run(ctx, dispatch.Phase{
//		Name:     "create",
//		Until:    dispatch.ForCount(1000),
//		Item:     createCampaign,
//		SubItems: 10,
//		SubItem:  createAd,
//	})
package dispatch
