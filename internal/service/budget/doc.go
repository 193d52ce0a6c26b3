// Package budget tracks monthly send volume against configured spend
// limits.
//
// The ledger is a soft quota: checks and commits are not atomic with
// each other, so racing sends may overshoot a limit by a few messages.
// That is accepted. What the ledger guarantees is that counters only
// move on confirmed successful sends, that warning and cap alerts fire
// once per period, and that a hard cap either skips further sends or
// pushes them into the next month depending on configuration.
package budget
