// Package webhook ingests delivery-provider callbacks.
//
// Providers redeliver events aggressively, so the (provider,
// providerEventId) pair is a unique key and a second delivery is a
// recognized no-op rather than a double-applied side effect. Bounces
// and complaints suppress the recipient; events carrying a provider
// message id are correlated back to the originating notification.
// Malformed payloads are stored with a processing error instead of
// being dropped, so they stay inspectable.
package webhook
