package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/voicesurvey/platform/internal/domain"
)

// ConsentIntent is the classified result of a consent-turn utterance (§4.3).
type ConsentIntent string

const (
	ConsentPositive ConsentIntent = "POSITIVE"
	ConsentNegative ConsentIntent = "NEGATIVE"
	ConsentUnclear  ConsentIntent = "UNCLEAR"
)

// positiveKeywords and negativeKeywords are the §12 fallback lists, consulted
// only when the LLM call fails or its JSON response fails to parse.
var positiveKeywords = map[domain.Language][]string{
	domain.LanguageEnglish: {"yes", "yeah", "sure", "ok", "okay"},
	domain.LanguageItalian: {"si", "sì", "va bene"},
}

var negativeKeywords = map[domain.Language][]string{
	domain.LanguageEnglish: {"no", "nope", "not interested"},
	domain.LanguageItalian: {"no", "non mi interessa"},
}

type consentResponse struct {
	Intent string `json:"intent"`
}

// ConsentDetector classifies a consent-turn utterance into POSITIVE,
// NEGATIVE, or UNCLEAR.
type ConsentDetector struct {
	client Client
}

// NewConsentDetector builds a ConsentDetector over the given LLM client.
func NewConsentDetector(client Client) *ConsentDetector {
	return &ConsentDetector{client: client}
}

// Detect classifies the caller's consent-turn utterance. A missing or
// garbled LLM response yields UNCLEAR unless a keyword fallback matches.
func (d *ConsentDetector) Detect(ctx context.Context, utterance string, language domain.Language) (ConsentIntent, error) {
	system := "You classify a phone survey respondent's reply to a consent question. " +
		`Respond with exactly one line of JSON: {"intent": "POSITIVE"|"NEGATIVE"|"UNCLEAR"}. ` +
		"POSITIVE means the caller agreed to continue. NEGATIVE means they declined. " +
		"UNCLEAR means the reply does not clearly indicate either."

	reply, err := d.client.Complete(ctx, system, utterance)
	if err != nil {
		return fallbackConsent(utterance, language), nil
	}

	var parsed consentResponse
	if jsonErr := json.Unmarshal([]byte(extractJSON(reply)), &parsed); jsonErr != nil {
		return fallbackConsent(utterance, language), nil
	}

	switch ConsentIntent(strings.ToUpper(parsed.Intent)) {
	case ConsentPositive:
		return ConsentPositive, nil
	case ConsentNegative:
		return ConsentNegative, nil
	default:
		return ConsentUnclear, nil
	}
}

func fallbackConsent(utterance string, language domain.Language) ConsentIntent {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	for _, kw := range negativeKeywords[language] {
		if strings.Contains(lower, kw) {
			return ConsentNegative
		}
	}
	for _, kw := range positiveKeywords[language] {
		if strings.Contains(lower, kw) {
			return ConsentPositive
		}
	}
	return ConsentUnclear
}

// extractJSON trims any leading/trailing prose around a single JSON object,
// since LLM replies sometimes wrap the object in commentary despite
// instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
