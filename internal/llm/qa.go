package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/voicesurvey/platform/internal/domain"
)

// QAIntent is the parsed intent of a question-turn reply (§4.3).
type QAIntent string

const (
	QAAnswer       QAIntent = "ANSWER"
	QARepeatRequest QAIntent = "REPEAT_REQUEST"
	QAUnclear      QAIntent = "UNCLEAR"
)

// QAResult is the parsed outcome of a single question-turn LLM call.
type QAResult struct {
	Intent     QAIntent
	Answer     string
	Confidence float64
	Reasoning  string
}

// QAOrchestrator drives one question turn: it asks the LLM to parse the
// caller's utterance against the fixed INTENT/ANSWER/CONFIDENCE/REASONING
// format (§4.3).
type QAOrchestrator struct {
	client Client
}

// NewQAOrchestrator builds a QAOrchestrator over the given LLM client.
func NewQAOrchestrator(client Client) *QAOrchestrator {
	return &QAOrchestrator{client: client}
}

// Parse classifies the caller's reply to the given question, of the given
// type and language.
func (o *QAOrchestrator) Parse(ctx context.Context, question string, qType domain.QuestionType, language domain.Language, utterance string) (QAResult, error) {
	system := fmt.Sprintf(
		"You parse a phone survey respondent's reply to question: %q (answer type: %s, language: %s). "+
			"Respond with exactly four lines in this format, nothing else:\n"+
			"INTENT: ANSWER|REPEAT_REQUEST|UNCLEAR\n"+
			"ANSWER: <the extracted answer, or NONE if not an answer>\n"+
			"CONFIDENCE: <a number between 0 and 1>\n"+
			"REASONING: <one short sentence>\n"+
			"Use REPEAT_REQUEST when the caller asks to hear the question again. "+
			"Use UNCLEAR for anything that is neither a clear answer nor a repeat request.",
		question, qType, language,
	)

	reply, err := o.client.Complete(ctx, system, utterance)
	if err != nil {
		return QAResult{Intent: QAUnclear, Confidence: 0.5}, nil
	}

	return parseQAReply(reply), nil
}

func parseQAReply(reply string) QAResult {
	result := QAResult{Intent: QAUnclear, Confidence: 0.5}
	for _, line := range strings.Split(reply, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "INTENT":
			result.Intent = normalizeIntent(val)
		case "ANSWER":
			if !strings.EqualFold(val, "NONE") {
				result.Answer = val
			}
		case "CONFIDENCE":
			result.Confidence = ClampConfidence(val)
		case "REASONING":
			result.Reasoning = val
		}
	}
	return result
}

func normalizeIntent(val string) QAIntent {
	switch QAIntent(strings.ToUpper(val)) {
	case QAAnswer:
		return QAAnswer
	case QARepeatRequest:
		return QARepeatRequest
	default:
		return QAUnclear
	}
}

// ClampConfidence parses a confidence string and clamps it to [0,1],
// defaulting to 0.5 on parse failure (B3: "2.5"→1.0, "-3"→0.0, "abc"→0.5).
func ClampConfidence(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
