package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voicesurvey/platform/internal/domain"
)

// Publisher is the Survey Event Publisher (§4.4): it turns a committed
// domain.Event into a FIFO bus message with the correct grouping and
// deduplication keys.
type Publisher struct {
	bus Bus
}

// NewPublisher builds a Publisher over the given Bus.
func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish emits ev to the bus. MessageGroupId is the campaign id (preserves
// per-campaign ordering); MessageDeduplicationId is
// `event_type:contact_id:<call_attempt_id>`, with "na" in the last slot when
// the event carries no call attempt id (the call_id is not consulted).
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal payload: %w", err)
	}

	callAttemptOrCallID := ""
	if ev.CallAttemptID != nil {
		callAttemptOrCallID = *ev.CallAttemptID
	}

	msg := Message{
		ID:      ev.ID,
		Body:    string(body),
		GroupID: ev.CampaignID,
		DedupID: domain.DeduplicationID(ev.Type, ev.ContactID, callAttemptOrCallID),
		Attributes: map[string]string{
			"event_type":      string(ev.Type),
			"campaign_id":     ev.CampaignID,
			"contact_id":      ev.ContactID,
			"payload_version": ev.Payload.PayloadVersion,
		},
	}

	return p.bus.Publish(ctx, msg)
}
