package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/domain"
)

func TestSMSSenderSend(t *testing.T) {
	var got smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "acct-1" || pass != "tok-1" {
			t.Errorf("bad auth %q/%q", user, pass)
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(smsResponse{MessageID: "sm-1"})
	}))
	defer srv.Close()

	s := NewSMSSender(config.SMSConfig{
		BaseURL:    srv.URL,
		AccountID:  "acct-1",
		AuthToken:  "tok-1",
		FromNumber: "+15550001111",
	}, srv.Client())

	res, err := s.Send(context.Background(), &Message{
		NotificationID: "n1",
		Type:           domain.TypeSMS,
		Recipient:      "+15551234567",
		Body:           "Your appointment is tomorrow at 2pm",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.ProviderMsgID != "sm-1" {
		t.Errorf("result = %+v", res)
	}
	if got.To != "+15551234567" || got.From != "+15550001111" || got.Ref != "n1" {
		t.Errorf("request = %+v", got)
	}
}

func TestSMSSenderCarrierRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(smsResponse{Error: "invalid number", ErrorCode: "invalid_recipient"})
	}))
	defer srv.Close()

	s := NewSMSSender(config.SMSConfig{BaseURL: srv.URL}, srv.Client())
	res, err := s.Send(context.Background(), &Message{Recipient: "+1555", Body: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailureType() != domain.FailureInvalidRecipient {
		t.Errorf("FailureType = %s, want invalid_recipient", res.FailureType())
	}
}

func TestSMSSenderStatusCodeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSMSSender(config.SMSConfig{BaseURL: srv.URL}, srv.Client())
	res, err := s.Send(context.Background(), &Message{Recipient: "+1555", Body: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.ErrorCode != "503" {
		t.Errorf("ErrorCode = %q, want 503", res.ErrorCode)
	}
	if res.FailureType() != domain.FailureHardBounce {
		// 5xx maps to hard bounce under SMTP-ish conventions; carriers
		// that mean "try later" send a retryable error_code instead.
		t.Errorf("FailureType = %s", res.FailureType())
	}
}

func TestSMSSenderUnconfigured(t *testing.T) {
	s := NewSMSSender(config.SMSConfig{}, nil)
	if _, err := s.Send(context.Background(), &Message{Recipient: "+1555"}); err == nil {
		t.Error("expected configuration error")
	}
}

func TestSESSenderWithoutCredentials(t *testing.T) {
	s := NewSESSender(config.SESConfig{})
	if s.Provider() != "ses" {
		t.Errorf("Provider = %q", s.Provider())
	}
	if _, err := s.Send(context.Background(), &Message{Recipient: "a@b.c"}); err == nil {
		t.Error("expected uninitialized client error")
	}
}

func TestResultFailureTypeMapping(t *testing.T) {
	cases := map[string]domain.FailureType{
		"429":               domain.FailureRateLimited,
		"timeout":           domain.FailureTimeout,
		"550":               domain.FailureHardBounce,
		"invalid_recipient": domain.FailureInvalidRecipient,
		"421":               domain.FailureSoftBounce,
		"":                  domain.FailureUnknown,
	}
	for code, want := range cases {
		res := &Result{ErrorCode: code}
		if got := res.FailureType(); got != want {
			t.Errorf("code %q -> %s, want %s", code, got, want)
		}
	}
}
