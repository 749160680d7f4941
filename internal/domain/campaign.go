package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a survey campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// QuestionType constrains how the dialogue orchestrator prompts for and
// parses an answer.
type QuestionType string

const (
	QuestionFreeText QuestionType = "free_text"
	QuestionNumeric  QuestionType = "numeric"
	QuestionScale    QuestionType = "scale"
)

// Question is one of a campaign's fixed three survey questions.
type Question struct {
	Position int          `json:"position" db:"position"`
	Text     string       `json:"text" db:"text"`
	Type     QuestionType `json:"answer_type" db:"answer_type"`
}

// CallWindow is an inclusive-exclusive [Start, End) local-time window during
// which the scheduler is permitted to dial contacts of a campaign. B1.
type CallWindow struct {
	Start time.Duration `json:"start"` // offset from local midnight
	End   time.Duration `json:"end"`
}

// Contains reports whether the given local time-of-day falls in [Start, End).
func (w CallWindow) Contains(localTimeOfDay time.Duration) bool {
	return localTimeOfDay >= w.Start && localTimeOfDay < w.End
}

// Campaign is a three-question outbound phone survey definition.
type Campaign struct {
	ID                    string         `json:"id" db:"id"`
	Status                CampaignStatus `json:"status" db:"status"`
	Language              string         `json:"language" db:"language"`
	Timezone              string         `json:"timezone" db:"timezone"` // IANA name, e.g. "America/New_York"
	IntroScript           string         `json:"intro_script" db:"intro_script"`
	Questions             [3]Question    `json:"questions" db:"-"`
	MaxAttempts           int            `json:"max_attempts" db:"max_attempts"`                 // 1..5
	RetryIntervalMinutes  int            `json:"retry_interval_minutes" db:"retry_interval_minutes"` // >=1
	CallWindow            CallWindow     `json:"call_window" db:"-"`
	RetryTemplateID       *string        `json:"retry_template_id" db:"retry_template_id"`
	CompletedEmailTmplID  *string        `json:"completed_email_template_id" db:"completed_email_template_id"`
	RefusedEmailTmplID    *string        `json:"refused_email_template_id" db:"refused_email_template_id"`
	NotReachedEmailTmplID *string        `json:"not_reached_email_template_id" db:"not_reached_email_template_id"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// validCampaignTransitions enumerates the allowed status transitions (§3).
var validCampaignTransitions = map[CampaignStatus]map[CampaignStatus]bool{
	CampaignDraft:     {CampaignScheduled: true, CampaignCancelled: true},
	CampaignScheduled: {CampaignRunning: true, CampaignCancelled: true},
	CampaignRunning:   {CampaignPaused: true, CampaignCompleted: true, CampaignCancelled: true},
	CampaignPaused:    {CampaignRunning: true, CampaignCancelled: true},
}

// CanTransition reports whether moving from `from` to `to` is a valid
// campaign status transition.
func CanTransition(from, to CampaignStatus) bool {
	return validCampaignTransitions[from][to]
}
