package mistral

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

// MistralProvider covers chat, embedding and audio transcription on the
// Mistral platform API, which mirrors the OpenAI wire shapes.
type MistralProvider struct {
	id         string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	capability modelrepo.CapabilityConfig
	tracker    libtracker.ActivityTracker
}

func NewMistralProvider(apiKey, baseURL string, capability modelrepo.CapabilityConfig, httpClient *http.Client, tracker libtracker.ActivityTracker) (modelrepo.Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mistral: api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &MistralProvider{
		id:         fmt.Sprintf("mistral-%s", baseURL),
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		capability: capability,
		tracker:    tracker,
	}, nil
}

func (p *MistralProvider) GetID() string   { return p.id }
func (p *MistralProvider) GetType() string { return "mistral" }

func (p *MistralProvider) Supports(task modelrepo.Task) bool {
	return p.capability.Supports(task)
}

func (p *MistralProvider) AvailableModels(task modelrepo.Task) []string {
	return p.capability.Models(task)
}

func (p *MistralProvider) client() mistralClient {
	return mistralClient{
		baseURL:    p.baseURL,
		apiKey:     p.apiKey,
		httpClient: p.httpClient,
		tracker:    p.tracker,
	}
}

func (p *MistralProvider) GetChatConnection(ctx context.Context) (modelrepo.ChatClient, error) {
	if !p.Supports(modelrepo.TaskChatCompletion) {
		return nil, &modelrepo.CapabilityError{Provider: "mistral", Task: modelrepo.TaskChatCompletion}
	}
	return &MistralChatClient{mistralClient: p.client()}, nil
}

func (p *MistralProvider) GetEmbedConnection(ctx context.Context) (modelrepo.EmbedClient, error) {
	if !p.Supports(modelrepo.TaskEmbedding) {
		return nil, &modelrepo.CapabilityError{Provider: "mistral", Task: modelrepo.TaskEmbedding}
	}
	return &MistralEmbedClient{mistralClient: p.client()}, nil
}

func (p *MistralProvider) GetTranscribeConnection(ctx context.Context) (modelrepo.TranscribeClient, error) {
	if !p.Supports(modelrepo.TaskTranscription) {
		return nil, &modelrepo.CapabilityError{Provider: "mistral", Task: modelrepo.TaskTranscription}
	}
	return &MistralTranscribeClient{mistralClient: p.client()}, nil
}

func (p *MistralProvider) GetVisionConnection(ctx context.Context) (modelrepo.VisionClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "mistral", Task: modelrepo.TaskImageToText}
}

func (p *MistralProvider) GetImageConnection(ctx context.Context) (modelrepo.ImageClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "mistral", Task: modelrepo.TaskTextToImage}
}
