package vllm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

// vLLMChatClient handles chat interaction against the OpenAI-compatible
// completions endpoint vLLM serves.
type vLLMChatClient struct {
	vLLMClient
}

type vLLMChatRequest struct {
	Model       string              `json:"model"`
	Messages    []modelrepo.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

func (c *vLLMChatClient) Chat(ctx context.Context, model string, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, modelrepo.UsageRecord, error) {
	started := time.Now()
	config := &modelrepo.ChatConfig{}
	for _, arg := range args {
		arg.Apply(config)
	}

	req := vLLMChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
		Stream:      false,
	}

	var response vLLMChatResponse
	if err := c.sendRequest(ctx, model, "/v1/chat/completions", req, &response); err != nil {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}
	if len(response.Choices) == 0 {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("no choices returned from vLLM for model %s", model)
	}

	choice := response.Choices[0]
	if choice.Message.Content == "" {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("empty content from model %s", model)
	}

	usage := modelrepo.NewUsageRecord(model, "chat", "vllm", response.Usage.TotalTokens, started)
	return modelrepo.ChatResult{
		Message:      modelrepo.Message{Role: choice.Message.Role, Content: choice.Message.Content},
		FinishReason: choice.FinishReason,
	}, usage, nil
}

var _ modelrepo.ChatClient = (*vLLMChatClient)(nil)

// vLLMVisionClient sends multimodal chat requests for vision models served
// by vLLM.
type vLLMVisionClient struct {
	vLLMClient
}

type vLLMVisionRequest struct {
	Model     string              `json:"model"`
	Messages  []vLLMVisionMessage `json:"messages"`
	MaxTokens *int                `json:"max_tokens,omitempty"`
}

type vLLMVisionMessage struct {
	Role    string        `json:"role"`
	Content []vLLMContent `json:"content"`
}

type vLLMContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *vLLMImageURL `json:"image_url,omitempty"`
}

type vLLMImageURL struct {
	URL string `json:"url"`
}

func (c *vLLMVisionClient) Describe(ctx context.Context, model string, image []byte, prompt string, args ...modelrepo.ChatArgument) (string, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(image) == 0 {
		return "", modelrepo.UsageRecord{}, fmt.Errorf("empty image payload")
	}
	config := &modelrepo.ChatConfig{}
	for _, arg := range args {
		arg.Apply(config)
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	req := vLLMVisionRequest{
		Model: model,
		Messages: []vLLMVisionMessage{{
			Role: "user",
			Content: []vLLMContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &vLLMImageURL{URL: "data:image/jpeg;base64," + encoded}},
			},
		}},
		MaxTokens: config.MaxTokens,
	}

	var response vLLMChatResponse
	if err := c.sendRequest(ctx, model, "/v1/chat/completions", req, &response); err != nil {
		return "", modelrepo.UsageRecord{}, err
	}
	if len(response.Choices) == 0 {
		return "", modelrepo.UsageRecord{}, fmt.Errorf("no choices returned from vLLM for model %s", model)
	}

	usage := modelrepo.NewUsageRecord(model, "vision", "vllm", response.Usage.TotalTokens, started)
	return response.Choices[0].Message.Content, usage, nil
}

var _ modelrepo.VisionClient = (*vLLMVisionClient)(nil)
