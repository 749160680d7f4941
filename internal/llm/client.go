// Package llm adapts a speech-dialogue LLM provider into the fixed prompt
// contract the Dialogue Orchestrator depends on (spec §4.3).
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/voicesurvey/platform/internal/pkg/logger"
)

// Client is the capability interface the orchestrator depends on; small and
// provider-agnostic per §9's "protocol-typed dependencies" note.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// bedrockMessage mirrors Anthropic's Messages API request shape, which is
// what bedrockruntime.InvokeModel expects for Claude models.
type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockResponse struct {
	Content []bedrockContentBlock `json:"content"`
}

// BedrockClient invokes a Claude model through Amazon Bedrock's InvokeModel
// API.
type BedrockClient struct {
	runtime *bedrockruntime.Client
	modelID string
}

// NewBedrockClient builds a BedrockClient from an already-configured AWS SDK
// client plus the target model id (e.g. "anthropic.claude-3-sonnet...").
func NewBedrockClient(runtime *bedrockruntime.Client, modelID string) *BedrockClient {
	return &BedrockClient{runtime: runtime, modelID: modelID}
}

// Complete sends a single-turn request and returns the model's text reply.
func (c *BedrockClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        512,
		System:           systemPrompt,
		Temperature:      0.2,
		Messages:         []bedrockMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("llm: invoke model: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("llm: unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("llm: empty response content")
	}

	text := resp.Content[0].Text
	logger.Debug("llm completion", "model", c.modelID, "prompt_chars", len(userPrompt), "reply_chars", len(text))
	return text, nil
}
