package gemini

import (
	"context"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

type GeminiChatClient struct {
	geminiClient
}

func (c *GeminiChatClient) Chat(ctx context.Context, model string, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, modelrepo.UsageRecord, error) {
	started := time.Now()
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}

	// System messages travel in system_instruction, not contents.
	var systemInstruction *geminiSystemInstruction
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if m.Content != "" {
				systemInstruction = &geminiSystemInstruction{
					Parts: []geminiPart{{Text: m.Content}},
				}
			}
			continue
		}
		// Gemini only accepts "user" and "model" roles.
		role := "user"
		if m.Role == "assistant" || m.Role == "model" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	req := geminiGenerateContentRequest{
		SystemInstruction: systemInstruction,
		Contents:          contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}

	text, tokens, err := c.generateText(ctx, model, req)
	if err != nil {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}

	usage := modelrepo.NewUsageRecord(model, "chat", "gemini", tokens, started)
	return modelrepo.ChatResult{
		Message: modelrepo.Message{Role: "assistant", Content: text},
	}, usage, nil
}

var _ modelrepo.ChatClient = (*GeminiChatClient)(nil)
