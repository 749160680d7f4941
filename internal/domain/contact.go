package domain

import "time"

// ContactState enumerates the lifecycle states of a campaign contact.
type ContactState string

const (
	ContactPending     ContactState = "pending"
	ContactInProgress  ContactState = "in_progress"
	ContactCompleted   ContactState = "completed"
	ContactRefused     ContactState = "refused"
	ContactNotReached  ContactState = "not_reached"
	ContactExcluded    ContactState = "excluded"
)

// Language is a contact's preferred dialogue language; "auto" defers to the
// campaign default.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageItalian Language = "it"
	LanguageAuto    Language = "auto"
)

// IsTerminal reports whether a contact in this state is never scheduled
// again (I3).
func (s ContactState) IsTerminal() bool {
	return s == ContactCompleted || s == ContactRefused || s == ContactExcluded
}

// Contact is a single phone number enrolled in a campaign.
type Contact struct {
	ID                string       `json:"id" db:"id"`
	CampaignID        string       `json:"campaign_id" db:"campaign_id"`
	Phone             string       `json:"phone" db:"phone"` // E.164-like
	Email             *string      `json:"email" db:"email"`
	PreferredLanguage Language     `json:"preferred_language" db:"preferred_language"`
	HasPriorConsent   bool         `json:"has_prior_consent" db:"has_prior_consent"`
	DoNotCall         bool         `json:"do_not_call" db:"do_not_call"`
	State             ContactState `json:"state" db:"state"`
	AttemptsCount     int          `json:"attempts_count" db:"attempts_count"`
	LastAttemptAt     *time.Time   `json:"last_attempt_at" db:"last_attempt_at"`
	LastOutcome       *string      `json:"last_outcome" db:"last_outcome"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// ExclusionSource records where an exclusion list entry came from.
type ExclusionSource string

const (
	ExclusionImport ExclusionSource = "import"
	ExclusionAPI    ExclusionSource = "api"
	ExclusionManual ExclusionSource = "manual"
)

// ExclusionListEntry is an append-only do-not-call record, keyed by phone.
type ExclusionListEntry struct {
	Phone     string          `json:"phone" db:"phone"`
	Reason    string          `json:"reason" db:"reason"`
	Source    ExclusionSource `json:"source" db:"source"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
