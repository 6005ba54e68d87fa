package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

// GeminiProvider covers chat, vision, document OCR and embedding through
// the Google generative language API. It cannot transcribe audio or
// generate images.
type GeminiProvider struct {
	id         string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	capability modelrepo.CapabilityConfig
	tracker    libtracker.ActivityTracker
}

func NewGeminiProvider(apiKey, baseURL string, capability modelrepo.CapabilityConfig, httpClient *http.Client, tracker libtracker.ActivityTracker) (modelrepo.Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &GeminiProvider{
		id:         fmt.Sprintf("gemini-%s", baseURL),
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		capability: capability,
		tracker:    tracker,
	}, nil
}

func (p *GeminiProvider) GetID() string   { return p.id }
func (p *GeminiProvider) GetType() string { return "gemini" }

func (p *GeminiProvider) Supports(task modelrepo.Task) bool {
	return p.capability.Supports(task)
}

func (p *GeminiProvider) AvailableModels(task modelrepo.Task) []string {
	return p.capability.Models(task)
}

func (p *GeminiProvider) client() geminiClient {
	return geminiClient{
		apiKey:     p.apiKey,
		baseURL:    p.baseURL,
		httpClient: p.httpClient,
		tracker:    p.tracker,
	}
}

func (p *GeminiProvider) GetChatConnection(ctx context.Context) (modelrepo.ChatClient, error) {
	if !p.Supports(modelrepo.TaskChatCompletion) {
		return nil, &modelrepo.CapabilityError{Provider: "gemini", Task: modelrepo.TaskChatCompletion}
	}
	return &GeminiChatClient{geminiClient: p.client()}, nil
}

func (p *GeminiProvider) GetTranscribeConnection(ctx context.Context) (modelrepo.TranscribeClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "gemini", Task: modelrepo.TaskTranscription}
}

func (p *GeminiProvider) GetVisionConnection(ctx context.Context) (modelrepo.VisionClient, error) {
	if !p.Supports(modelrepo.TaskImageToText) && !p.Supports(modelrepo.TaskPDFOCR) {
		return nil, &modelrepo.CapabilityError{Provider: "gemini", Task: modelrepo.TaskImageToText}
	}
	return &GeminiVisionClient{geminiClient: p.client()}, nil
}

func (p *GeminiProvider) GetEmbedConnection(ctx context.Context) (modelrepo.EmbedClient, error) {
	if !p.Supports(modelrepo.TaskEmbedding) {
		return nil, &modelrepo.CapabilityError{Provider: "gemini", Task: modelrepo.TaskEmbedding}
	}
	return &GeminiEmbedClient{geminiClient: p.client()}, nil
}

func (p *GeminiProvider) GetImageConnection(ctx context.Context) (modelrepo.ImageClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "gemini", Task: modelrepo.TaskTextToImage}
}
