package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/bellasuite/notify/internal/pkg/httputil"
	"github.com/bellasuite/notify/internal/service/webhook"
)

// snsEnvelope is the AWS SNS wrapper around SES notifications.
type snsEnvelope struct {
	Type         string `json:"Type"`
	MessageId    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

// sesNotification is the SES event inside the SNS message.
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	EventType        string `json:"eventType"`
	Mail             struct {
		MessageID   string   `json:"messageId"`
		Destination []string `json:"destination"`
	} `json:"mail"`
	Bounce *struct {
		BounceType        string `json:"bounceType"`
		BouncedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"bouncedRecipients"`
	} `json:"bounce,omitempty"`
	Complaint *struct {
		ComplainedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"complainedRecipients"`
	} `json:"complaint,omitempty"`
}

// ReceiveSESWebhook handles SES notifications delivered through SNS.
// SNS retries aggressively on non-2xx, so malformed payloads are
// acknowledged and left to the ingestor's processed=false flagging.
func (h *Handlers) ReceiveSESWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}

	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.BadRequest(w, "invalid JSON")
		return
	}

	// Topic subscription handshake: confirm and stop.
	if env.Type == "SubscriptionConfirmation" {
		log.Printf("[Webhooks] SES subscription confirmation received, confirming...")
		resp, err := http.Get(env.SubscribeURL)
		if err != nil {
			log.Printf("[Webhooks] Failed to confirm subscription: %v", err)
		} else {
			resp.Body.Close()
			log.Printf("[Webhooks] SES subscription confirmed")
		}
		httputil.OK(w, map[string]string{"status": "confirmed"})
		return
	}

	var note sesNotification
	if err := json.Unmarshal([]byte(env.Message), &note); err != nil {
		log.Printf("[Webhooks] Unparseable SES notification %s: %v", env.MessageId, err)
		// Acknowledge so SNS stops retrying; the raw envelope is kept.
		result, ingErr := h.webhooks.Ingest(r.Context(), webhook.IngestInput{
			Provider:        "ses",
			ProviderEventID: env.MessageId,
			EventType:       "unparseable",
			Payload:         body,
		})
		if ingErr != nil {
			httputil.InternalError(w, ingErr)
			return
		}
		httputil.OK(w, result)
		return
	}

	eventType := note.EventType
	if eventType == "" {
		eventType = note.NotificationType
	}

	// SES tags mailbox-full and similar bounces as Transient (or
	// Undetermined). Those are retryable delivery failures; only a
	// Permanent bounce may suppress the address.
	if note.Bounce != nil && note.Bounce.BounceType != "Permanent" {
		eventType = "failed"
	}

	result, err := h.webhooks.Ingest(r.Context(), webhook.IngestInput{
		Provider:        "ses",
		ProviderEventID: env.MessageId,
		EventType:       eventType,
		Recipient:       sesRecipient(&note),
		ProviderMsgID:   note.Mail.MessageID,
		Payload:         json.RawMessage(env.Message),
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// sesRecipient picks the affected address, preferring the bounce or
// complaint detail over the original destination list.
func sesRecipient(note *sesNotification) string {
	if note.Bounce != nil && len(note.Bounce.BouncedRecipients) > 0 {
		return note.Bounce.BouncedRecipients[0].EmailAddress
	}
	if note.Complaint != nil && len(note.Complaint.ComplainedRecipients) > 0 {
		return note.Complaint.ComplainedRecipients[0].EmailAddress
	}
	if len(note.Mail.Destination) > 0 {
		return note.Mail.Destination[0]
	}
	return ""
}

// smsCallback is the SMS carrier's delivery status callback.
type smsCallback struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // delivered, failed, undeliverable
	To        string `json:"to"`
	ErrorCode string `json:"error_code,omitempty"`
}

// ReceiveSMSWebhook handles the SMS carrier's status callbacks.
func (h *Handlers) ReceiveSMSWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}

	var cb smsCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		httputil.BadRequest(w, "invalid JSON")
		return
	}

	// The carrier reports undeliverable numbers as a status, not a
	// bounce object; map it onto the bounce flow so the number gets
	// suppressed.
	eventType := cb.Status
	if eventType == "undeliverable" {
		eventType = "bounce"
	}

	result, err := h.webhooks.Ingest(r.Context(), webhook.IngestInput{
		Provider:        "sms",
		ProviderEventID: cb.EventID,
		EventType:       eventType,
		Recipient:       cb.To,
		ProviderMsgID:   cb.MessageID,
		Payload:         body,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ListWebhookEvents returns stored webhook events for inspection.
func (h *Handlers) ListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var processed *bool
	if v := q.Get("processed"); v != "" {
		b := v == "true"
		processed = &b
	}

	events, err := h.webhooks.ListEvents(r.Context(), processed,
		queryInt(q.Get("limit"), 100), queryInt(q.Get("offset"), 0))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, events)
}
