package telephony

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestParseWebhookKnownStatus(t *testing.T) {
	now := time.Now()
	values := map[string][]string{
		"CallSid":     {"CA123"},
		"CallStatus":  {"completed"},
		"call_id":     {"call-1"},
		"campaign_id": {"camp-1"},
		"contact_id":  {"contact-1"},
	}
	event, err := ParseWebhook(values, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventType != EventCompleted {
		t.Fatalf("event type = %v, want completed", event.EventType)
	}
	if !event.EventType.IsTerminal() {
		t.Fatalf("expected completed to be terminal")
	}
	if event.CallID != "call-1" {
		t.Fatalf("call id = %q", event.CallID)
	}
}

func TestParseWebhookMissingFields(t *testing.T) {
	_, err := ParseWebhook(map[string][]string{"CallSid": {"CA123"}}, time.Now())
	if err != ErrUnparseablePayload {
		t.Fatalf("err = %v, want ErrUnparseablePayload", err)
	}
}

func TestParseWebhookUnknownStatusMapsToFailed(t *testing.T) {
	values := map[string][]string{
		"CallSid":    {"CA123"},
		"CallStatus": {"some-new-vendor-status"},
	}
	event, err := ParseWebhook(values, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventType != EventFailed {
		t.Fatalf("event type = %v, want failed fallback", event.EventType)
	}
	if event.RawStatus != "some-new-vendor-status" {
		t.Fatalf("raw status not preserved: %q", event.RawStatus)
	}
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"CallSid":"CA123"}`)
	secret := "whsec_test"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !ValidateSignature(sig, body, secret) {
		t.Fatalf("expected signature to validate")
	}
	if ValidateSignature("deadbeef", body, secret) {
		t.Fatalf("expected bad signature to fail")
	}
}
