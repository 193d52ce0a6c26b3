package domain

import "time"

// ConsentType distinguishes what kind of messaging the customer agreed to.
type ConsentType string

const (
	ConsentTransactional ConsentType = "transactional"
	ConsentMarketing     ConsentType = "marketing"
)

// ConsentSource indicates where a consent signal originated.
type ConsentSource string

const (
	ConsentSourceBookingForm ConsentSource = "booking_form"
	ConsentSourceCustomer    ConsentSource = "customer_portal"
	ConsentSourceAdmin       ConsentSource = "admin"
	ConsentSourceImport      ConsentSource = "import"
)

// ConsentRecord captures a customer's consent decision for one
// (channel, consentType) pair. Records are never deleted, only superseded;
// the latest record wins.
type ConsentRecord struct {
	ID         string        `json:"id" db:"id"`
	CustomerID string        `json:"customer_id" db:"customer_id"`
	Channel    Channel       `json:"channel" db:"channel"`
	Type       ConsentType   `json:"consent_type" db:"consent_type"`
	Consented  bool          `json:"consented" db:"consented"`
	Source     ConsentSource `json:"source" db:"source"`
	SourceIP   string        `json:"source_ip,omitempty" db:"source_ip"`
	UserAgent  string        `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}
