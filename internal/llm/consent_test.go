package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/voicesurvey/platform/internal/domain"
)

type stubClient struct {
	reply string
	err   error
}

func (s *stubClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.reply, s.err
}

func TestConsentDetectorParsesJSON(t *testing.T) {
	d := NewConsentDetector(&stubClient{reply: `{"intent": "POSITIVE"}`})
	intent, err := d.Detect(context.Background(), "sure, go ahead", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != ConsentPositive {
		t.Fatalf("intent = %v, want POSITIVE", intent)
	}
}

func TestConsentDetectorFallsBackOnGarbledReply(t *testing.T) {
	d := NewConsentDetector(&stubClient{reply: "not json at all"})
	intent, err := d.Detect(context.Background(), "no thanks, not interested", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != ConsentNegative {
		t.Fatalf("intent = %v, want NEGATIVE from keyword fallback", intent)
	}
}

func TestConsentDetectorFallsBackOnClientError(t *testing.T) {
	d := NewConsentDetector(&stubClient{err: errors.New("provider down")})
	intent, err := d.Detect(context.Background(), "si va bene", domain.LanguageItalian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != ConsentPositive {
		t.Fatalf("intent = %v, want POSITIVE from italian keyword fallback", intent)
	}
}

func TestConsentDetectorUnclearWithNoKeywordMatch(t *testing.T) {
	d := NewConsentDetector(&stubClient{reply: "garbled"})
	intent, err := d.Detect(context.Background(), "xyz what", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != ConsentUnclear {
		t.Fatalf("intent = %v, want UNCLEAR", intent)
	}
}
