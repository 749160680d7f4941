// Package dialogue drives the per-call, LLM-mediated survey conversation:
// consent -> Q1 -> Q2 -> Q3 -> completion, with reprompt bounds (spec §4.3).
package dialogue

import (
	"context"
	"fmt"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/llm"
)

// maxRepromptsPerPhase is the reprompt count at which the call is marked
// failed: the phase fails once RepromptCount reaches this value, i.e. after
// 2 UNCLEAR/REPEAT_REQUEST turns (§4.3's "Reprompt cap", default 2).
const maxRepromptsPerPhase = 2

// StepResult is what the caller (the live call loop) should do next: speak
// Prompt, or end the call with Outcome set.
type StepResult struct {
	Session domain.DialogueSession
	Prompt  string
	EndCall bool
	Outcome domain.CallOutcome // zero value unless EndCall
}

// Orchestrator advances one dialogue session by one user turn.
type Orchestrator struct {
	consent *llm.ConsentDetector
	qa      *llm.QAOrchestrator
}

// New builds an Orchestrator.
func New(consent *llm.ConsentDetector, qa *llm.QAOrchestrator) *Orchestrator {
	return &Orchestrator{consent: consent, qa: qa}
}

// NewSession starts a fresh dialogue session in the consent phase.
func NewSession(now time.Time) domain.DialogueSession {
	return domain.DialogueSession{Phase: domain.PhaseConsent, StartedAt: now}
}

// Step consumes the caller's utterance and returns the next prompt or the
// call's terminal outcome.
func (o *Orchestrator) Step(ctx context.Context, session domain.DialogueSession, campaign domain.Campaign, language domain.Language, utterance string) (StepResult, error) {
	session.LastUserUtterance = utterance

	switch session.Phase {
	case domain.PhaseConsent:
		return o.stepConsent(ctx, session, utterance, language, campaign)
	case domain.PhaseQ1, domain.PhaseQ2, domain.PhaseQ3:
		return o.stepQuestion(ctx, session, campaign, language, utterance)
	default:
		return StepResult{Session: session, EndCall: true, Outcome: terminalOutcomeFor(session.Phase)}, nil
	}
}

func (o *Orchestrator) stepConsent(ctx context.Context, session domain.DialogueSession, utterance string, language domain.Language, campaign domain.Campaign) (StepResult, error) {
	intent, err := o.consent.Detect(ctx, utterance, language)
	if err != nil {
		return StepResult{}, fmt.Errorf("dialogue: detect consent: %w", err)
	}

	switch intent {
	case llm.ConsentPositive:
		session.Phase = domain.PhaseQ1
		session.CurrentQuestion = 1
		session.RepromptCount = 0
		return StepResult{Session: session, Prompt: questionPrompt(1, campaign.Questions[0].Text, false)}, nil

	case llm.ConsentNegative:
		session.Phase = domain.PhaseRefused
		session.RefusalSource = domain.RefusalDialogue
		return StepResult{Session: session, EndCall: true, Outcome: domain.OutcomeRefused}, nil

	default: // UNCLEAR
		session.RepromptCount++
		if session.RepromptCount >= maxRepromptsPerPhase {
			session.Phase = domain.PhaseFailed
			return StepResult{Session: session, EndCall: true, Outcome: domain.OutcomeFailed}, nil
		}
		return StepResult{Session: session, Prompt: consentRepromptText()}, nil
	}
}

func (o *Orchestrator) stepQuestion(ctx context.Context, session domain.DialogueSession, campaign domain.Campaign, language domain.Language, utterance string) (StepResult, error) {
	n := session.CurrentQuestion
	question := campaign.Questions[n-1]

	result, err := o.qa.Parse(ctx, question.Text, question.Type, language, utterance)
	if err != nil {
		return StepResult{}, fmt.Errorf("dialogue: parse answer: %w", err)
	}

	switch result.Intent {
	case llm.QAAnswer:
		session.CollectedAnswers[n-1] = result.Answer
		session.Confidences[n-1] = result.Confidence
		if n < 3 {
			session.CurrentQuestion = n + 1
			session.Phase = phaseForQuestion(n + 1)
			session.RepromptCount = 0
			return StepResult{Session: session, Prompt: questionPrompt(n+1, campaign.Questions[n].Text, false)}, nil
		}
		session.Phase = domain.PhaseDone
		return StepResult{Session: session, EndCall: true, Outcome: domain.OutcomeCompleted}, nil

	case llm.QARepeatRequest:
		session.RepromptCount++
		if session.RepromptCount >= maxRepromptsPerPhase {
			session.Phase = domain.PhaseFailed
			return StepResult{Session: session, EndCall: true, Outcome: domain.OutcomeFailed}, nil
		}
		return StepResult{Session: session, Prompt: questionPrompt(n, question.Text, true)}, nil

	default: // UNCLEAR
		session.RepromptCount++
		if session.RepromptCount >= maxRepromptsPerPhase {
			session.Phase = domain.PhaseFailed
			return StepResult{Session: session, EndCall: true, Outcome: domain.OutcomeFailed}, nil
		}
		return StepResult{Session: session, Prompt: questionPrompt(n, question.Text, true)}, nil
	}
}

func phaseForQuestion(n int) domain.DialoguePhase {
	switch n {
	case 1:
		return domain.PhaseQ1
	case 2:
		return domain.PhaseQ2
	default:
		return domain.PhaseQ3
	}
}

func terminalOutcomeFor(phase domain.DialoguePhase) domain.CallOutcome {
	switch phase {
	case domain.PhaseDone:
		return domain.OutcomeCompleted
	case domain.PhaseRefused:
		return domain.OutcomeRefused
	default:
		return domain.OutcomeFailed
	}
}

// questionPrompt builds the delivery text for question n. When isRepeat is
// true it mentions the repeat explicitly, per §4.3's prompt contract.
func questionPrompt(n int, text string, isRepeat bool) string {
	if isRepeat {
		return fmt.Sprintf("Let me repeat that. Question %d: %s", n, text)
	}
	return fmt.Sprintf("Question %d: %s", n, text)
}

func consentRepromptText() string {
	return "Sorry, I didn't catch that. Would you like to continue with a few short questions?"
}
