package domain

import "time"

// CallOutcome enumerates the terminal outcomes of a call attempt.
type CallOutcome string

const (
	OutcomeCompleted CallOutcome = "completed"
	OutcomeRefused   CallOutcome = "refused"
	OutcomeNoAnswer  CallOutcome = "no_answer"
	OutcomeBusy      CallOutcome = "busy"
	OutcomeFailed    CallOutcome = "failed"
)

// IsTerminal reports whether the outcome closes the call attempt.
func (o CallOutcome) IsTerminal() bool { return o != "" }

// CallState is a non-terminal provider-reported call progress state, used
// only to rank out-of-order webhook delivery (§4.2). Terminal states are
// represented by CallOutcome instead.
type CallState string

const (
	CallQueued    CallState = "queued"
	CallInitiated CallState = "initiated"
	CallRinging   CallState = "ringing"
	CallAnswered  CallState = "answered"
)

// callStateRank orders non-terminal states so an out-of-order webhook never
// regresses CallAttempt.State.
var callStateRank = map[CallState]int{
	CallQueued:    0,
	CallInitiated: 1,
	CallRinging:   2,
	CallAnswered:  3,
}

// Rank returns the state's position in the monotonic progression, or -1 if
// unrecognized.
func (s CallState) Rank() int {
	r, ok := callStateRank[s]
	if !ok {
		return -1
	}
	return r
}

// RefusalSource distinguishes a dialogue-level consent refusal from a
// provider-side decline; both map to OutcomeRefused (§9 open question i).
type RefusalSource string

const (
	RefusalDialogue RefusalSource = "dialogue"
	RefusalProvider RefusalSource = "provider"
)

// DialoguePhase is the current step of the per-call survey conversation
// (§4.3).
type DialoguePhase string

const (
	PhaseConsent  DialoguePhase = "consent"
	PhaseQ1       DialoguePhase = "q1"
	PhaseQ2       DialoguePhase = "q2"
	PhaseQ3       DialoguePhase = "q3"
	PhaseDone     DialoguePhase = "done"
	PhaseRefused  DialoguePhase = "refused"
	PhaseFailed   DialoguePhase = "failed"
)

// DialogueSession is the live conversation state for a call attempt,
// persisted into CallAttempt.Metadata on every turn so a mid-call crash
// loses at most the in-flight turn (§12).
type DialogueSession struct {
	Phase             DialoguePhase `json:"phase"`
	CurrentQuestion   int           `json:"current_question"` // 0..3
	CollectedAnswers  [3]string     `json:"collected_answers"`
	Confidences       [3]float64    `json:"confidences"`
	RepromptCount     int           `json:"reprompt_count"`
	LastUserUtterance string        `json:"last_user_utterance,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	RefusalSource     RefusalSource `json:"refusal_source,omitempty"`
}

// CallAttemptMetadata is the JSON payload stored in CallAttempt.Metadata.
type CallAttemptMetadata struct {
	Dialogue   *DialogueSession `json:"dialogue,omitempty"`
	RawStatus  string           `json:"raw_status,omitempty"`
	AnsweredBy string           `json:"answered_by,omitempty"`
}

// CallAttempt is one dialing action against a contact.
type CallAttempt struct {
	ID             string              `json:"id" db:"id"`
	ContactID      string              `json:"contact_id" db:"contact_id"`
	CampaignID     string              `json:"campaign_id" db:"campaign_id"`
	AttemptNumber  int                 `json:"attempt_number" db:"attempt_number"`
	CallID         string              `json:"call_id" db:"call_id"` // our id, globally unique (I6)
	ProviderCallID string              `json:"provider_call_id" db:"provider_call_id"`
	State          CallState           `json:"state" db:"state"`
	StartedAt      time.Time           `json:"started_at" db:"started_at"`
	AnsweredAt     *time.Time          `json:"answered_at" db:"answered_at"`
	EndedAt        *time.Time          `json:"ended_at" db:"ended_at"`
	Outcome        *CallOutcome        `json:"outcome" db:"outcome"`
	ErrorCode      *string             `json:"error_code" db:"error_code"`
	Metadata       CallAttemptMetadata `json:"metadata" db:"metadata"`
}

// IsTerminal reports whether the attempt has reached a final outcome.
func (a *CallAttempt) IsTerminal() bool {
	return a.Outcome != nil
}

// QuestionAnswer is one captured answer with the confidence the QA parser
// assigned it.
type QuestionAnswer struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// SurveyResponse is the set of three captured answers for a completed call
// attempt, written exactly once (I4, I5).
type SurveyResponse struct {
	ContactID     string          `json:"contact_id" db:"contact_id"`
	CampaignID    string          `json:"campaign_id" db:"campaign_id"`
	CallAttemptID string          `json:"call_attempt_id" db:"call_attempt_id"`
	Answers       [3]QuestionAnswer `json:"answers" db:"-"`
	CompletedAt   time.Time       `json:"completed_at" db:"completed_at"`
}
