package domain

// EmailNotificationStatus enumerates the lifecycle of an outbound
// notification email.
type EmailNotificationStatus string

const (
	EmailPending EmailNotificationStatus = "pending"
	EmailSent    EmailNotificationStatus = "sent"
	EmailFailed  EmailNotificationStatus = "failed"
)

// EmailNotification is the record of the notification sent (or attempted)
// for a single survey event, keyed 1:1 on EventID.
type EmailNotification struct {
	ID               string                   `json:"id" db:"id"`
	EventID          string                   `json:"event_id" db:"event_id"` // unique
	ContactID        string                   `json:"contact_id" db:"contact_id"`
	CampaignID       string                   `json:"campaign_id" db:"campaign_id"`
	TemplateID       string                   `json:"template_id" db:"template_id"`
	ToEmail          string                   `json:"to_email" db:"to_email"`
	Status           EmailNotificationStatus  `json:"status" db:"status"`
	RetryCount       int                      `json:"retry_count" db:"retry_count"`
	ProviderMessageID *string                 `json:"provider_message_id" db:"provider_message_id"`
	ErrorMessage     *string                  `json:"error_message" db:"error_message"`
}
