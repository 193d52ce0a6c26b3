// Package deadletter manages permanently-failed notifications parked
// for manual inspection. The queue writes items; only admin actions
// mutate them afterwards. Retry spawns a fresh pending request with a
// clean attempt counter, resolve closes an item out without one, and
// both are guarded by a conditional update so two admins acting on the
// same item race to exactly one winner.
package deadletter
