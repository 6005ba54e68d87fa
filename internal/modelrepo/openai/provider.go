package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

// OpenAIProvider forwards all six capability clients to the OpenAI API.
type OpenAIProvider struct {
	id         string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	capability modelrepo.CapabilityConfig
	tracker    libtracker.ActivityTracker
}

func NewOpenAIProvider(apiKey, baseURL string, capability modelrepo.CapabilityConfig, httpClient *http.Client, tracker libtracker.ActivityTracker) (modelrepo.Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &OpenAIProvider{
		id:         fmt.Sprintf("openai-%s", baseURL),
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		capability: capability,
		tracker:    tracker,
	}, nil
}

func (p *OpenAIProvider) GetID() string   { return p.id }
func (p *OpenAIProvider) GetType() string { return "openai" }

func (p *OpenAIProvider) Supports(task modelrepo.Task) bool {
	return p.capability.Supports(task)
}

func (p *OpenAIProvider) AvailableModels(task modelrepo.Task) []string {
	return p.capability.Models(task)
}

func (p *OpenAIProvider) client() openAIClient {
	return openAIClient{
		baseURL:    p.baseURL,
		apiKey:     p.apiKey,
		httpClient: p.httpClient,
		tracker:    p.tracker,
	}
}

func (p *OpenAIProvider) GetChatConnection(ctx context.Context) (modelrepo.ChatClient, error) {
	if !p.Supports(modelrepo.TaskChatCompletion) {
		return nil, &modelrepo.CapabilityError{Provider: "openai", Task: modelrepo.TaskChatCompletion}
	}
	return &OpenAIChatClient{openAIClient: p.client()}, nil
}

func (p *OpenAIProvider) GetTranscribeConnection(ctx context.Context) (modelrepo.TranscribeClient, error) {
	if !p.Supports(modelrepo.TaskTranscription) {
		return nil, &modelrepo.CapabilityError{Provider: "openai", Task: modelrepo.TaskTranscription}
	}
	return &OpenAIMediaClient{openAIClient: p.client()}, nil
}

func (p *OpenAIProvider) GetVisionConnection(ctx context.Context) (modelrepo.VisionClient, error) {
	if !p.Supports(modelrepo.TaskImageToText) && !p.Supports(modelrepo.TaskPDFOCR) {
		return nil, &modelrepo.CapabilityError{Provider: "openai", Task: modelrepo.TaskImageToText}
	}
	return &OpenAIMediaClient{openAIClient: p.client()}, nil
}

func (p *OpenAIProvider) GetEmbedConnection(ctx context.Context) (modelrepo.EmbedClient, error) {
	if !p.Supports(modelrepo.TaskEmbedding) {
		return nil, &modelrepo.CapabilityError{Provider: "openai", Task: modelrepo.TaskEmbedding}
	}
	return &OpenAIEmbedClient{openAIClient: p.client()}, nil
}

func (p *OpenAIProvider) GetImageConnection(ctx context.Context) (modelrepo.ImageClient, error) {
	if !p.Supports(modelrepo.TaskTextToImage) {
		return nil, &modelrepo.CapabilityError{Provider: "openai", Task: modelrepo.TaskTextToImage}
	}
	return &OpenAIMediaClient{openAIClient: p.client()}, nil
}
