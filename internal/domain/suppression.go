package domain

import "time"

// SuppressionType enumerates why an address or number is blocked.
type SuppressionType string

const (
	SuppressUnsubscribe SuppressionType = "unsubscribe"
	SuppressBounce      SuppressionType = "bounce"
	SuppressSpam        SuppressionType = "spam"
	SuppressInvalid     SuppressionType = "invalid"
	SuppressAdminBlock  SuppressionType = "admin_block"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SuppressionSourceWebhook     SuppressionSource = "provider_webhook"
	SuppressionSourceUnsubscribe SuppressionSource = "unsubscribe_link"
	SuppressionSourceAdmin       SuppressionSource = "admin"
	SuppressionSourceImport      SuppressionSource = "import"
)

// SuppressionEntry is a hard, consent-independent block on contacting
// an email address or phone number. A non-reactivated entry always wins
// over an affirmative consent record.
type SuppressionEntry struct {
	ID                string            `json:"id" db:"id"`
	Email             string            `json:"email,omitempty" db:"email"`
	Phone             string            `json:"phone,omitempty" db:"phone"`
	Type              SuppressionType   `json:"type" db:"type"`
	Reason            string            `json:"reason,omitempty" db:"reason"`
	Source            SuppressionSource `json:"source" db:"source"`
	ReactivationToken string            `json:"reactivation_token,omitempty" db:"reactivation_token"`
	ReactivatedAt     *time.Time        `json:"reactivated_at,omitempty" db:"reactivated_at"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// Active reports whether the entry still blocks sending.
func (s *SuppressionEntry) Active() bool {
	return s.ReactivatedAt == nil
}
