package domain

import "time"

// EventType enumerates the survey lifecycle events published to the event
// bus (§4.4).
type EventType string

const (
	EventSurveyCompleted  EventType = "survey.completed"
	EventSurveyRefused    EventType = "survey.refused"
	EventSurveyNotReached EventType = "survey.not_reached"
)

// EventFor maps a terminal call outcome to its corresponding event type,
// resolving the dual refusal path (§9 open question i): either a
// dialogue-level refusal or a provider-side decline yields survey.refused.
func EventFor(outcome CallOutcome, attemptsCount, maxAttempts int) (EventType, bool) {
	switch outcome {
	case OutcomeCompleted:
		return EventSurveyCompleted, true
	case OutcomeRefused:
		return EventSurveyRefused, true
	case OutcomeNoAnswer, OutcomeBusy, OutcomeFailed:
		if attemptsCount >= maxAttempts {
			return EventSurveyNotReached, true
		}
		return "", false
	default:
		return "", false
	}
}

// EventPayload is the wire body published alongside an Event (§4.4).
type EventPayload struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	CampaignID    string    `json:"campaign_id"`
	ContactID     string    `json:"contact_id"`
	CallAttemptID string    `json:"call_attempt_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	AttemptsCount int       `json:"attempts_count"`
	Answers       []string  `json:"answers,omitempty"`
	Outcome       string    `json:"outcome"`
	Email         string    `json:"email,omitempty"`
	Locale        string    `json:"locale,omitempty"`
	PayloadVersion string   `json:"payload_version"`
}

// Event is the append-only, exactly-once-per-(type,contact,attempt) record
// of a terminal transition (I5).
type Event struct {
	ID            string    `json:"id" db:"id"`
	Type          EventType `json:"type" db:"type"`
	CampaignID    string    `json:"campaign_id" db:"campaign_id"`
	ContactID     string    `json:"contact_id" db:"contact_id"`
	CallAttemptID *string   `json:"call_attempt_id" db:"call_attempt_id"` // SET NULL on call_attempt delete
	Payload       EventPayload `json:"payload" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DeduplicationID builds the FIFO bus's MessageDeduplicationId per §4.4:
// f"{event_type}:{contact_id}:{call_attempt_id or call_id or 'na'}".
func DeduplicationID(eventType EventType, contactID, callAttemptOrCallID string) string {
	if callAttemptOrCallID == "" {
		callAttemptOrCallID = "na"
	}
	return string(eventType) + ":" + contactID + ":" + callAttemptOrCallID
}
