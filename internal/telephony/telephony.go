// Package telephony adapts an outbound-calling provider into the domain's
// call-placement and webhook-parsing contracts (spec §4.2, §6).
package telephony

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/voicesurvey/platform/internal/pkg/httpretry"
)

// ErrMissingCallID is returned when a provider's call-placement response has
// no call identifier (§6: "absence of call_id → adapter error").
var ErrMissingCallID = errors.New("telephony: provider response missing call_id")

// ErrInvalidSignature is returned when a webhook's signature header does not
// validate.
var ErrInvalidSignature = errors.New("telephony: invalid webhook signature")

// ErrUnparseablePayload is returned when a webhook body cannot be decoded
// into a WebhookEvent at all (maps to a 400, §4.2).
var ErrUnparseablePayload = errors.New("telephony: unparseable webhook payload")

// QuestionPrompt is one question handed to the provider for the call script.
type QuestionPrompt struct {
	Position   int    `json:"position"`
	Text       string `json:"text"`
	AnswerType string `json:"answer_type"`
}

// CallMetadata mirrors our own identifiers back through the provider so the
// webhook can be correlated to the originating CallAttempt (§6).
type CallMetadata struct {
	CallID     string `json:"call_id"`
	CampaignID string `json:"campaign_id"`
	ContactID  string `json:"contact_id"`
}

// PlaceCallRequest is the outbound call-placement request (§6).
type PlaceCallRequest struct {
	To          string           `json:"to"`
	From        string           `json:"from"`
	Language    string           `json:"language"`
	CallbackURL string           `json:"callback_url"`
	IntroScript string           `json:"intro_script"`
	Questions   []QuestionPrompt `json:"questions"`
	Metadata    CallMetadata     `json:"metadata"`
}

// PlaceCallResponse is the provider's call-placement response (§6).
type PlaceCallResponse struct {
	ProviderCallID string `json:"call_id"`
	Status         string `json:"status"`
}

// WebhookEventType enumerates the provider call-progress events the adapter
// recognizes (§4.2).
type WebhookEventType string

const (
	EventInitiated WebhookEventType = "initiated"
	EventRinging   WebhookEventType = "ringing"
	EventAnswered  WebhookEventType = "answered"
	EventCompleted WebhookEventType = "completed"
	EventFailed    WebhookEventType = "failed"
	EventNoAnswer  WebhookEventType = "no_answer"
	EventBusy      WebhookEventType = "busy"
)

// IsTerminal reports whether this webhook event closes the call attempt.
func (e WebhookEventType) IsTerminal() bool {
	switch e {
	case EventCompleted, EventFailed, EventNoAnswer, EventBusy:
		return true
	default:
		return false
	}
}

// WebhookEvent is the parsed form of a provider callback (§4.2, §6).
type WebhookEvent struct {
	EventType      WebhookEventType
	ProviderCallID string
	CallID         string
	CampaignID     string
	ContactID      string
	DurationSecs   int
	ErrorCode      string
	ErrorMessage   string
	RawStatus      string
	AnsweredBy     string
	Timestamp      time.Time
}

// rawWebhookPayload is the wire shape posted by the provider, covering both
// form-encoded and JSON bodies via the same field names.
type rawWebhookPayload struct {
	ProviderCallID string `json:"CallSid"`
	Status         string `json:"CallStatus"`
	CallID         string `json:"call_id"`
	CampaignID     string `json:"campaign_id"`
	ContactID      string `json:"contact_id"`
	Duration       string `json:"duration"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	AnsweredBy     string `json:"answered_by"`
}

// statusToEventType maps a provider's raw CallStatus into our WebhookEventType.
var statusToEventType = map[string]WebhookEventType{
	"initiated":   EventInitiated,
	"ringing":     EventRinging,
	"in-progress": EventAnswered,
	"answered":    EventAnswered,
	"completed":   EventCompleted,
	"failed":      EventFailed,
	"no-answer":   EventNoAnswer,
	"no_answer":   EventNoAnswer,
	"busy":        EventBusy,
}

// Client places outbound calls through a telephony provider.
type Client struct {
	httpClient httpretry.HTTPDoer
	baseURL    string
	authToken  string
	fromNumber string
}

// placeCallMaxRetries is the retry ceiling for PlaceCall — a provider 5xx or
// 429 mid-tick shouldn't cost the contact an entire retry_interval_minutes
// wait when a couple of backed-off retries would have placed the call.
const placeCallMaxRetries = 3

// NewClient builds a telephony Client. The outbound call-placement request
// goes through httpretry's exponential-backoff-with-jitter retry, the same
// resilience wrapper the rest of this codebase's outbound HTTP calls use.
func NewClient(httpClient *http.Client, baseURL, authToken, fromNumber string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpretry.NewRetryClient(httpClient, placeCallMaxRetries),
		baseURL:    baseURL,
		authToken:  authToken,
		fromNumber: fromNumber,
	}
}

// PlaceCall requests the provider dial `to` and run the given script.
func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResponse, error) {
	req.From = c.fromNumber

	body, err := json.Marshal(req)
	if err != nil {
		return PlaceCallResponse{}, fmt.Errorf("telephony: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls", bytes.NewReader(body))
	if err != nil {
		return PlaceCallResponse{}, fmt.Errorf("telephony: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return PlaceCallResponse{}, fmt.Errorf("telephony: call provider: %w", err)
	}
	defer resp.Body.Close()

	var out PlaceCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PlaceCallResponse{}, fmt.Errorf("telephony: decode response: %w", err)
	}
	if out.ProviderCallID == "" {
		return PlaceCallResponse{}, ErrMissingCallID
	}
	return out, nil
}

// ValidateSignature checks an HMAC-SHA256 webhook signature computed over
// the raw request body, matching the pattern of provider webhook
// authentication used elsewhere in this codebase's webhook receivers.
func ValidateSignature(signature string, body []byte, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ParseWebhook decodes a provider webhook body (JSON or form-urlencoded, via
// r.ParseForm having already run) into a WebhookEvent. Unknown CallStatus
// values map the event type to EventFailed with RawStatus preserved for
// operator visibility.
func ParseWebhook(values map[string][]string, now time.Time) (WebhookEvent, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	raw := rawWebhookPayload{
		ProviderCallID: get("CallSid"),
		Status:         get("CallStatus"),
		CallID:         get("call_id"),
		CampaignID:     get("campaign_id"),
		ContactID:      get("contact_id"),
		Duration:       get("duration"),
		ErrorCode:      get("error_code"),
		ErrorMessage:   get("error_message"),
		AnsweredBy:     get("answered_by"),
	}

	if raw.ProviderCallID == "" || raw.Status == "" {
		return WebhookEvent{}, ErrUnparseablePayload
	}

	eventType, ok := statusToEventType[raw.Status]
	if !ok {
		eventType = EventFailed
	}

	event := WebhookEvent{
		EventType:      eventType,
		ProviderCallID: raw.ProviderCallID,
		CallID:         raw.CallID,
		CampaignID:     raw.CampaignID,
		ContactID:      raw.ContactID,
		ErrorCode:      raw.ErrorCode,
		ErrorMessage:   raw.ErrorMessage,
		RawStatus:      raw.Status,
		AnsweredBy:     raw.AnsweredBy,
		Timestamp:      now,
	}
	return event, nil
}

// ParseJSONWebhook decodes a JSON-body webhook payload into a WebhookEvent,
// for providers that POST JSON rather than form-encoded bodies.
func ParseJSONWebhook(body []byte, now time.Time) (WebhookEvent, error) {
	var raw rawWebhookPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return WebhookEvent{}, ErrUnparseablePayload
	}
	values := map[string][]string{
		"CallSid":       {raw.ProviderCallID},
		"CallStatus":    {raw.Status},
		"call_id":       {raw.CallID},
		"campaign_id":   {raw.CampaignID},
		"contact_id":    {raw.ContactID},
		"duration":      {raw.Duration},
		"error_code":    {raw.ErrorCode},
		"error_message": {raw.ErrorMessage},
		"answered_by":   {raw.AnsweredBy},
	}
	return ParseWebhook(values, now)
}
