package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/pkg/httpretry"
	"github.com/bellasuite/notify/internal/pkg/logger"
)

// SMSSender delivers text messages through a carrier HTTP API. The
// request shape follows the common carrier convention: JSON body with
// from/to/text, basic auth on the account, message id in the response.
type SMSSender struct {
	baseURL    string
	accountID  string
	authToken  string
	fromNumber string
	client     httpretry.HTTPDoer
}

// NewSMSSender creates a carrier-API sender. Rate-limit and server
// errors retry inside the HTTP client before they surface here.
func NewSMSSender(cfg config.SMSConfig, client httpretry.HTTPDoer) *SMSSender {
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 2)
	}
	return &SMSSender{
		baseURL:    cfg.BaseURL,
		accountID:  cfg.AccountID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		client:     client,
	}
}

func (s *SMSSender) Provider() string { return "sms" }

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Ref  string `json:"ref,omitempty"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Send posts one message to the carrier. Carrier rejections become a
// failed Result carrying the carrier's code for classification.
func (s *SMSSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("SMS sender not configured - missing base URL")
	}

	payload, err := json.Marshal(smsRequest{
		From: s.fromNumber,
		To:   msg.Recipient,
		Text: msg.Body,
		Ref:  msg.NotificationID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.accountID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		code := "provider_error"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		return &Result{Success: false, ErrorCode: code, Err: err}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var out smsResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := out.ErrorCode
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		log.Printf("[SMS] Failed to send to %s: status %d (%s)",
			logger.RedactPhone(msg.Recipient), resp.StatusCode, out.Error)
		return &Result{
			Success:   false,
			ErrorCode: code,
			Err:       fmt.Errorf("carrier returned status %d", resp.StatusCode),
		}, nil
	}

	log.Printf("[SMS] Sent to %s (id: %s)", logger.RedactPhone(msg.Recipient), out.MessageID)
	return &Result{Success: true, ProviderMsgID: out.MessageID, SentAt: time.Now()}, nil
}
