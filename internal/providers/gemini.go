package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"

	"google.golang.org/genai"
)

// GeminiClient implements engine.LLMClient on the native Gemini API. Unlike the
// OpenAI-compatible endpoint it supports response_mime_type for JSON mode.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new Gemini client for the engine.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: modelName}, nil
}

// Chat implements engine.LLMClient.Chat.
func (c *GeminiClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	if modelName == "" {
		modelName = c.model
	}

	cfg := &genai.GenerateContentConfig{}
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			system = append(system, msg.Content)
		case engine.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		case engine.RoleUser:
			parts := []*genai.Part{genai.NewPartFromText(msg.Content)}
			for _, img := range msg.Images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MediaType))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.LLMResponse{}, engine.WrapLLMError(err, httpStatus, retryAfter)
	}
	if len(resp.Candidates) == 0 {
		return engine.LLMResponse{}, fmt.Errorf("empty response from Gemini")
	}

	finishReason := "stop"
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonMaxTokens:
		finishReason = "length"
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
		finishReason = "content_filter"
	}

	var usage engine.Usage
	if m := resp.UsageMetadata; m != nil {
		usage = engine.Usage{
			Prompt:     int(m.PromptTokenCount),
			Completion: int(m.CandidatesTokenCount),
			Total:      int(m.TotalTokenCount),
		}
	}

	return engine.LLMResponse{
		Assistant: engine.ChatMessage{
			Role:    engine.RoleAssistant,
			Content: resp.Text(),
		},
		Usage:        usage,
		FinishReason: finishReason,
	}, nil
}
