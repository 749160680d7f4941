package mailing

import "github.com/voicesurvey/platform/internal/domain"

// PayloadVars flattens an event payload into the Liquid binding set
// templates render against (§4.5 step 3: "variables drawn from the event
// payload").
func PayloadVars(p domain.EventPayload) map[string]interface{} {
	return map[string]interface{}{
		"event_id":       p.EventID,
		"event_type":     string(p.EventType),
		"campaign_id":    p.CampaignID,
		"contact_id":     p.ContactID,
		"call_attempt_id": p.CallAttemptID,
		"attempts_count": p.AttemptsCount,
		"answers":        p.Answers,
		"outcome":        p.Outcome,
		"email":          p.Email,
		"locale":         p.Locale,
	}
}

// TemplateIDFor resolves which of the campaign's per-outcome template ids
// applies to an event type, per §1's "retry/e-mail template ids".
func TemplateIDFor(c domain.Campaign, eventType domain.EventType) (string, bool) {
	var id *string
	switch eventType {
	case domain.EventSurveyCompleted:
		id = c.CompletedEmailTmplID
	case domain.EventSurveyRefused:
		id = c.RefusedEmailTmplID
	case domain.EventSurveyNotReached:
		id = c.NotReachedEmailTmplID
	}
	if id == nil || *id == "" {
		return "", false
	}
	return *id, true
}
