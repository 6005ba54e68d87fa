package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

// OpenAIMediaClient serves the transcription, vision and image-generation
// endpoints, which all share the same HTTP plumbing.
type OpenAIMediaClient struct {
	openAIClient
}

type openAITranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (c *OpenAIMediaClient) Transcribe(ctx context.Context, model string, audio []byte, language string) (modelrepo.Transcription, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(audio) == 0 {
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("empty audio payload")
	}

	fields := map[string]string{"model": model}
	if language != "" {
		fields["language"] = language
	}

	var response openAITranscriptionResponse
	if err := c.sendMultipart(ctx, "/audio/transcriptions", fields, "file", "audio.mp3", audio, &response); err != nil {
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, err
	}

	usage := modelrepo.NewUsageRecord(model, "transcription", "openai", len(response.Text)/4, started)
	return modelrepo.Transcription{
		Text:     response.Text,
		Language: response.Language,
		Duration: response.Duration,
	}, usage, nil
}

type openAIVisionRequest struct {
	Model     string                `json:"model"`
	Messages  []openAIVisionMessage `json:"messages"`
	MaxTokens *int                  `json:"max_tokens,omitempty"`
}

type openAIVisionMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

func (c *OpenAIMediaClient) Describe(ctx context.Context, model string, image []byte, prompt string, args ...modelrepo.ChatArgument) (string, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(image) == 0 {
		return "", modelrepo.UsageRecord{}, fmt.Errorf("empty image payload")
	}
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	req := openAIVisionRequest{
		Model: model,
		Messages: []openAIVisionMessage{{
			Role: "user",
			Content: []openAIContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: "data:image/jpeg;base64," + encoded}},
			},
		}},
		MaxTokens: cfg.MaxTokens,
	}

	var response openAIChatResponse
	if err := c.sendRequest(ctx, "/chat/completions", req, &response); err != nil {
		return "", modelrepo.UsageRecord{}, err
	}
	if len(response.Choices) == 0 {
		return "", modelrepo.UsageRecord{}, fmt.Errorf("no vision completion choices returned from OpenAI for model %s", model)
	}

	usage := modelrepo.NewUsageRecord(model, "vision", "openai", response.Usage.TotalTokens, started)
	return response.Choices[0].Message.Content, usage, nil
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	N              int    `json:"n,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *OpenAIMediaClient) Generate(ctx context.Context, model, prompt, size, quality string, n int) ([][]byte, modelrepo.UsageRecord, error) {
	started := time.Now()
	if prompt == "" {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("empty image prompt")
	}
	if n <= 0 {
		n = 1
	}

	req := openAIImageRequest{
		Model:          model,
		Prompt:         prompt,
		Size:           size,
		Quality:        quality,
		N:              n,
		ResponseFormat: "b64_json",
	}

	var response openAIImageResponse
	if err := c.sendRequest(ctx, "/images/generations", req, &response); err != nil {
		return nil, modelrepo.UsageRecord{}, err
	}
	if len(response.Data) == 0 {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("no images returned from OpenAI for model %s", model)
	}

	images := make([][]byte, 0, len(response.Data))
	for _, item := range response.Data {
		raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, modelrepo.UsageRecord{}, fmt.Errorf("failed to decode generated image: %w", err)
		}
		images = append(images, raw)
	}

	usage := modelrepo.NewUsageRecord(model, "image-generation", "openai", len(images), started)
	return images, usage, nil
}
