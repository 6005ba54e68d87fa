package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/ollama/ollama/api"
)

// OllamaProvider talks to a local Ollama daemon through the official api
// client. Chat and embedding only; the daemon has no speech or image
// endpoints.
type OllamaProvider struct {
	id         string
	baseURL    string
	httpClient *http.Client
	capability modelrepo.CapabilityConfig
	tracker    libtracker.ActivityTracker
}

func NewOllamaProvider(baseURL string, capability modelrepo.CapabilityConfig, httpClient *http.Client, tracker libtracker.ActivityTracker) (modelrepo.Provider, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}
	return &OllamaProvider{
		id:         fmt.Sprintf("ollama-%s", baseURL),
		baseURL:    baseURL,
		httpClient: httpClient,
		capability: capability,
		tracker:    tracker,
	}, nil
}

func (p *OllamaProvider) GetID() string   { return p.id }
func (p *OllamaProvider) GetType() string { return "ollama" }

func (p *OllamaProvider) Supports(task modelrepo.Task) bool {
	return p.capability.Supports(task)
}

func (p *OllamaProvider) AvailableModels(task modelrepo.Task) []string {
	return p.capability.Models(task)
}

func (p *OllamaProvider) apiClient() (*api.Client, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", p.baseURL, err)
	}
	return api.NewClient(u, p.httpClient), nil
}

func (p *OllamaProvider) GetChatConnection(ctx context.Context) (modelrepo.ChatClient, error) {
	if !p.Supports(modelrepo.TaskChatCompletion) {
		return nil, &modelrepo.CapabilityError{Provider: "ollama", Task: modelrepo.TaskChatCompletion}
	}
	client, err := p.apiClient()
	if err != nil {
		return nil, err
	}
	return &OllamaChatClient{ollamaClient: client, backendURL: p.baseURL, tracker: p.tracker}, nil
}

func (p *OllamaProvider) GetEmbedConnection(ctx context.Context) (modelrepo.EmbedClient, error) {
	if !p.Supports(modelrepo.TaskEmbedding) {
		return nil, &modelrepo.CapabilityError{Provider: "ollama", Task: modelrepo.TaskEmbedding}
	}
	client, err := p.apiClient()
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedClient{ollamaClient: client, backendURL: p.baseURL, tracker: p.tracker}, nil
}

func (p *OllamaProvider) GetTranscribeConnection(ctx context.Context) (modelrepo.TranscribeClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "ollama", Task: modelrepo.TaskTranscription}
}

func (p *OllamaProvider) GetVisionConnection(ctx context.Context) (modelrepo.VisionClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "ollama", Task: modelrepo.TaskImageToText}
}

func (p *OllamaProvider) GetImageConnection(ctx context.Context) (modelrepo.ImageClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "ollama", Task: modelrepo.TaskTextToImage}
}
