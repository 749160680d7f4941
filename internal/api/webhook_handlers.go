package api

import (
	"io"
	"net/http"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/pkg/httputil"
	"github.com/voicesurvey/platform/internal/telephony"
	"github.com/voicesurvey/platform/internal/webhookingestor"
)

type webhookHandlers struct {
	ingestor      *webhookingestor.Ingestor
	webhookSecret string
}

// ackStatus maps an Ingestor Result to the HTTP status the provider sees
// (§4.2, §7's taxonomy: applied=200, deliberate no-op=202, transient
// store error=5xx so the provider retries).
func ackStatus(r webhookingestor.Result) int {
	switch r.Ack {
	case webhookingestor.AckOK:
		return http.StatusOK
	case webhookingestor.AckAcceptedNoOp:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// handleStatusWebhook ingests a provider call-progress callback
// (initiated/ringing/answered/completed/failed/no_answer/busy).
//
//	POST /webhooks/telephony
func (h *webhookHandlers) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}

	if h.webhookSecret != "" {
		sig := r.Header.Get("X-Webhook-Signature")
		if !telephony.ValidateSignature(sig, body, h.webhookSecret) {
			httputil.Error(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var ev telephony.WebhookEvent
	contentType := r.Header.Get("Content-Type")
	if contentType == "application/json" {
		ev, err = telephony.ParseJSONWebhook(body, time.Now())
	} else {
		if ferr := r.ParseForm(); ferr != nil {
			httputil.BadRequest(w, "failed to parse form body")
			return
		}
		ev, err = telephony.ParseWebhook(r.PostForm, time.Now())
	}
	if err != nil {
		httputil.BadRequest(w, "unparseable webhook payload")
		return
	}

	result, err := h.ingestor.Handle(r.Context(), ev)
	if err != nil && result.Ack != webhookingestor.AckRetryable {
		httputil.InternalError(w, err)
		return
	}
	if err != nil {
		// AckRetryable: tell the provider to retry rather than leak internals.
		httputil.Error(w, ackStatus(result), "temporary error, please retry")
		return
	}

	httputil.JSON(w, ackStatus(result), map[string]string{"reason": result.Reason})
}

// turnRequest is the provider's per-turn speech-result callback body (§4.3):
// the caller's utterance for one dialogue step.
type turnRequest struct {
	CallID    string `json:"call_id"`
	Language  string `json:"language"`
	Utterance string `json:"utterance"`
}

// turnResponse tells the provider what to do next: speak Prompt, or hang up.
type turnResponse struct {
	Prompt  string `json:"prompt"`
	EndCall bool   `json:"end_call"`
}

// handleTurn drives one live dialogue turn and returns the next prompt (or
// instructs the provider to end the call).
//
//	POST /webhooks/telephony/turn
func (h *webhookHandlers) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CallID == "" {
		httputil.BadRequest(w, "call_id is required")
		return
	}

	lang := domain.Language(req.Language)
	if lang == "" {
		lang = domain.LanguageAuto
	}

	turn, err := h.ingestor.HandleTurn(r.Context(), req.CallID, lang, req.Utterance)
	if err != nil && turn.Result.Ack != webhookingestor.AckRetryable {
		httputil.InternalError(w, err)
		return
	}
	if err != nil {
		httputil.Error(w, ackStatus(turn.Result), "temporary error, please retry")
		return
	}

	httputil.JSON(w, ackStatus(turn.Result), turnResponse{Prompt: turn.Prompt, EndCall: turn.EndCall})
}
