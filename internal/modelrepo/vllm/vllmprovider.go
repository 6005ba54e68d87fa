package vllm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

// VLLMProvider serves chat and vision models from a self-hosted vLLM
// instance over its OpenAI-compatible API.
type VLLMProvider struct {
	id         string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	capability modelrepo.CapabilityConfig
	tracker    libtracker.ActivityTracker
}

func NewVLLMProvider(apiKey, baseURL string, capability modelrepo.CapabilityConfig, httpClient *http.Client, tracker libtracker.ActivityTracker) (modelrepo.Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("vllm: base URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &VLLMProvider{
		id:         fmt.Sprintf("vllm-%s", baseURL),
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		capability: capability,
		tracker:    tracker,
	}, nil
}

func (p *VLLMProvider) GetID() string   { return p.id }
func (p *VLLMProvider) GetType() string { return "vllm" }

func (p *VLLMProvider) Supports(task modelrepo.Task) bool {
	return p.capability.Supports(task)
}

func (p *VLLMProvider) AvailableModels(task modelrepo.Task) []string {
	return p.capability.Models(task)
}

func (p *VLLMProvider) client() vLLMClient {
	return vLLMClient{
		baseURL:    p.baseURL,
		apiKey:     p.apiKey,
		httpClient: p.httpClient,
		tracker:    p.tracker,
	}
}

func (p *VLLMProvider) GetChatConnection(ctx context.Context) (modelrepo.ChatClient, error) {
	if !p.Supports(modelrepo.TaskChatCompletion) {
		return nil, &modelrepo.CapabilityError{Provider: "vllm", Task: modelrepo.TaskChatCompletion}
	}
	return &vLLMChatClient{vLLMClient: p.client()}, nil
}

func (p *VLLMProvider) GetVisionConnection(ctx context.Context) (modelrepo.VisionClient, error) {
	if !p.Supports(modelrepo.TaskImageToText) {
		return nil, &modelrepo.CapabilityError{Provider: "vllm", Task: modelrepo.TaskImageToText}
	}
	return &vLLMVisionClient{vLLMClient: p.client()}, nil
}

func (p *VLLMProvider) GetTranscribeConnection(ctx context.Context) (modelrepo.TranscribeClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "vllm", Task: modelrepo.TaskTranscription}
}

func (p *VLLMProvider) GetEmbedConnection(ctx context.Context) (modelrepo.EmbedClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "vllm", Task: modelrepo.TaskEmbedding}
}

func (p *VLLMProvider) GetImageConnection(ctx context.Context) (modelrepo.ImageClient, error) {
	return nil, &modelrepo.CapabilityError{Provider: "vllm", Task: modelrepo.TaskTextToImage}
}
