package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/llm"
)

type scriptedClient struct {
	replies []string
	i       int
}

func (s *scriptedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	r := s.replies[s.i]
	if s.i < len(s.replies)-1 {
		s.i++
	}
	return r, nil
}

func testCampaign() domain.Campaign {
	return domain.Campaign{
		Questions: [3]domain.Question{
			{Position: 1, Text: "How satisfied are you, 1-10?", Type: domain.QuestionNumeric},
			{Position: 2, Text: "Would you recommend us?", Type: domain.QuestionFreeText},
			{Position: 3, Text: "Do you call customer support often?", Type: domain.QuestionScale},
		},
	}
}

func TestHappyPathThroughAllQuestions(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"intent":"POSITIVE"}`}}
	orch := New(llm.NewConsentDetector(client), llm.NewQAOrchestrator(client))

	session := NewSession(time.Now())
	campaign := testCampaign()

	result, err := orch.Step(context.Background(), session, campaign, domain.LanguageEnglish, "sure")
	if err != nil {
		t.Fatalf("consent step error: %v", err)
	}
	if result.Session.Phase != domain.PhaseQ1 {
		t.Fatalf("phase = %v, want q1", result.Session.Phase)
	}

	client.replies = []string{"INTENT: ANSWER\nANSWER: 8\nCONFIDENCE: 0.9\nREASONING: ok"}
	result, err = orch.Step(context.Background(), result.Session, campaign, domain.LanguageEnglish, "8")
	if err != nil {
		t.Fatalf("q1 step error: %v", err)
	}
	if result.Session.Phase != domain.PhaseQ2 {
		t.Fatalf("phase = %v, want q2", result.Session.Phase)
	}

	client.replies = []string{"INTENT: ANSWER\nANSWER: yes\nCONFIDENCE: 0.8\nREASONING: ok"}
	result, err = orch.Step(context.Background(), result.Session, campaign, domain.LanguageEnglish, "yes")
	if err != nil {
		t.Fatalf("q2 step error: %v", err)
	}
	if result.Session.Phase != domain.PhaseQ3 {
		t.Fatalf("phase = %v, want q3", result.Session.Phase)
	}

	client.replies = []string{"INTENT: ANSWER\nANSWER: sometimes\nCONFIDENCE: 0.7\nREASONING: ok"}
	result, err = orch.Step(context.Background(), result.Session, campaign, domain.LanguageEnglish, "sometimes")
	if err != nil {
		t.Fatalf("q3 step error: %v", err)
	}
	if !result.EndCall || result.Outcome != domain.OutcomeCompleted {
		t.Fatalf("expected completed terminal, got EndCall=%v outcome=%v", result.EndCall, result.Outcome)
	}
	if result.Session.CollectedAnswers != [3]string{"8", "yes", "sometimes"} {
		t.Fatalf("answers = %v", result.Session.CollectedAnswers)
	}
}

func TestConsentNegativeEndsCallRefused(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"intent":"NEGATIVE"}`}}
	orch := New(llm.NewConsentDetector(client), llm.NewQAOrchestrator(client))

	result, err := orch.Step(context.Background(), NewSession(time.Now()), testCampaign(), domain.LanguageEnglish, "no thanks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.EndCall || result.Outcome != domain.OutcomeRefused {
		t.Fatalf("expected refused terminal, got %+v", result)
	}
	if result.Session.RefusalSource != domain.RefusalDialogue {
		t.Fatalf("refusal source = %v, want dialogue", result.Session.RefusalSource)
	}
}

func TestUnclearRepromptCapFailsCall(t *testing.T) {
	client := &scriptedClient{replies: []string{"garbled garbled"}}
	orch := New(llm.NewConsentDetector(client), llm.NewQAOrchestrator(client))

	session := NewSession(time.Now())
	campaign := testCampaign()

	var result StepResult
	var err error
	for i := 0; i < 3; i++ {
		result, err = orch.Step(context.Background(), session, campaign, domain.LanguageEnglish, "xyz")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		session = result.Session
		if result.EndCall {
			break
		}
	}
	if !result.EndCall || result.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed after exceeding reprompt cap, got %+v", result)
	}
}
