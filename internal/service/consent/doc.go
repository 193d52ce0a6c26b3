// Package consent implements the consent and suppression guard.
//
// This is the single gate deciding whether a customer may be contacted on
// a given channel. Suppression entries (bounces, complaints, unsubscribes,
// admin blocks) are a hard block checked first and independent of consent;
// only unsuppressed recipients proceed to the consent check, which fails
// closed: no explicit "consented" record means no send.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly. "Cannot send" is a normal outcome
// returned as a Decision, never an error.
package consent
