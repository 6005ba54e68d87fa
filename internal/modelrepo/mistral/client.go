package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

type mistralClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracker    libtracker.ActivityTracker
}

func (c *mistralClient) sendRequest(ctx context.Context, model, endpoint string, request any, response any) error {
	url := c.baseURL + endpoint

	reportErr, reportChange, end := c.tracker.Start(
		ctx,
		"http_request",
		"mistral",
		"model", model,
		"endpoint", endpoint,
		"base_url", c.baseURL,
	)
	defer end()

	var reqBody io.Reader
	if request != nil {
		b, err := json.Marshal(request)
		if err != nil {
			err = fmt.Errorf("failed to marshal request: %w", err)
			reportErr(err)
			return err
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		reportErr(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("HTTP request failed for model %s: %w", model, err)
		reportErr(err)
		return err
	}
	defer resp.Body.Close()

	reportChange("http_response", map[string]any{
		"status_code": resp.StatusCode,
	})

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("mistral API returned non-200 status: %d, body: %s for model %s", resp.StatusCode, string(bodyBytes), model)
		reportErr(err)
		return err
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			err = fmt.Errorf("failed to decode response for model %s: %w", model, err)
			reportErr(err)
			return err
		}
	}

	reportChange("request_completed", nil)
	return nil
}

type mistralChatResponse struct {
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

type MistralChatClient struct {
	mistralClient
}

type mistralChatRequest struct {
	Model       string              `json:"model"`
	Messages    []modelrepo.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

func (c *MistralChatClient) Chat(ctx context.Context, model string, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, modelrepo.UsageRecord, error) {
	started := time.Now()
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}

	req := mistralChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var response mistralChatResponse
	if err := c.sendRequest(ctx, model, "/chat/completions", req, &response); err != nil {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}
	if len(response.Choices) == 0 {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("no choices returned from Mistral for model %s", model)
	}

	choice := response.Choices[0]
	if choice.Message.Content == "" {
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("empty content from model %s", model)
	}

	usage := modelrepo.NewUsageRecord(model, "chat", "mistral", response.Usage.TotalTokens, started)
	return modelrepo.ChatResult{
		Message:      modelrepo.Message{Role: choice.Message.Role, Content: choice.Message.Content},
		FinishReason: choice.FinishReason,
	}, usage, nil
}

var _ modelrepo.ChatClient = (*MistralChatClient)(nil)

type MistralEmbedClient struct {
	mistralClient
}

type mistralEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type mistralEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *MistralEmbedClient) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(texts) == 0 {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("no input texts for embedding")
	}

	req := mistralEmbedRequest{Model: model, Input: texts}
	var response mistralEmbedResponse
	if err := c.sendRequest(ctx, model, "/embeddings", req, &response); err != nil {
		return nil, modelrepo.UsageRecord{}, err
	}
	if len(response.Data) != len(texts) {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("expected %d embeddings, got %d from Mistral model %s", len(texts), len(response.Data), model)
	}

	vectors := make([][]float64, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, modelrepo.UsageRecord{}, fmt.Errorf("embedding index %d out of range for model %s", item.Index, model)
		}
		vectors[item.Index] = item.Embedding
	}

	usage := modelrepo.NewUsageRecord(model, "embedding", "mistral", response.Usage.TotalTokens, started)
	return vectors, usage, nil
}

var _ modelrepo.EmbedClient = (*MistralEmbedClient)(nil)

type MistralTranscribeClient struct {
	mistralClient
}

type mistralTranscriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Usage    struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *MistralTranscribeClient) Transcribe(ctx context.Context, model string, audio []byte, language string) (modelrepo.Transcription, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(audio) == 0 {
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("empty audio payload")
	}

	reportErr, _, end := c.tracker.Start(ctx, "transcribe", "mistral", "model", model)
	defer end()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("model", model); err != nil {
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to write form field: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			reportErr(err)
			return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", "audio.mp3")
	if err != nil {
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("HTTP request failed for model %s: %w", model, err)
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("mistral API returned non-200 status: %d, body: %s for model %s", resp.StatusCode, string(bodyBytes), model)
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, err
	}

	var response mistralTranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		err = fmt.Errorf("failed to decode response for model %s: %w", model, err)
		reportErr(err)
		return modelrepo.Transcription{}, modelrepo.UsageRecord{}, err
	}

	usage := modelrepo.NewUsageRecord(model, "transcription", "mistral", response.Usage.TotalTokens, started)
	return modelrepo.Transcription{
		Text:     response.Text,
		Language: response.Language,
	}, usage, nil
}

var _ modelrepo.TranscribeClient = (*MistralTranscribeClient)(nil)
