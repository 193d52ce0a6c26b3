// Package retrycfg resolves the retry/backoff policy that applies to a
// notification. Policies are scoped global, per channel, or per
// provider; resolution is most-specific-wins with the configured global
// policy as the final fallback, so the queue always gets a usable
// policy even with an empty database.
package retrycfg
