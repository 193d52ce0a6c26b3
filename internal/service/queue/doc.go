// Package queue implements the notification delivery state machine.
//
// A request moves pending → sending → {sent | failed}, with cancellation
// allowed from pending or sending. Enqueue runs the full admission
// pipeline in a fixed order: consent/suppression guard, budget ledger,
// short-window deadline and quiet-hours scheduling, then deduplication.
// Business-rule rejections come back as skip results with a reason,
// never as errors.
//
// The one correctness-critical exclusion lives in the Store: claiming a
// due request and every terminal transition are conditional updates
// gated on the current status, so two workers racing on the same row
// resolve to exactly one winner.
package queue
