package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

type OpenAIChatClient struct {
	openAIClient
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []modelrepo.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIChatClient) Chat(ctx context.Context, model string, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, modelrepo.UsageRecord, error) {
	started := time.Now()
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}

	req := openAIChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var response openAIChatResponse
	if err := c.sendRequest(ctx, "/chat/completions", req, &response); err != nil {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}
	if len(response.Choices) == 0 {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("no chat completion choices returned from OpenAI for model %s", model)
	}

	choice := response.Choices[0]
	if choice.Message.Content == "" {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("empty content from model %s despite normal completion. Finish reason: %s", model, choice.FinishReason)
	}

	usage := modelrepo.NewUsageRecord(model, "chat", "openai", response.Usage.TotalTokens, started)
	return modelrepo.ChatResult{
		Message:      modelrepo.Message{Role: choice.Message.Role, Content: choice.Message.Content},
		FinishReason: choice.FinishReason,
	}, usage, nil
}
