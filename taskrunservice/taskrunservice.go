package taskrunservice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/taskresolver"
	"github.com/contenox/modelrouter/summarizer"
)

// Usage is the per-call accounting block returned with every task
// execution response.
type Usage struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Tokens   int    `json:"tokens"`
}

// Target optionally pins a request to an explicit provider and model
// instead of the resolved task configuration.
type Target struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type ChatRequest struct {
	Target
	Messages    []modelrepo.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"maxTokens,omitempty"`
}

type ChatResponse struct {
	Message      modelrepo.Message `json:"message"`
	FinishReason string            `json:"finishReason,omitempty"`
	Usage        Usage             `json:"usage"`
}

type EmbedRequest struct {
	Target
	Texts      []string `json:"texts"`
	InputType  string   `json:"inputType,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type EmbedResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Usage   Usage       `json:"usage"`
}

type TranscribeRequest struct {
	Target
	AudioBase64 string `json:"audioBase64"`
	Language    string `json:"language,omitempty"`
}

type TranscribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Usage    Usage   `json:"usage"`
}

type VisionRequest struct {
	Target
	ImageBase64 string `json:"imageBase64"`
	Prompt      string `json:"prompt"`
	// PDFOCR routes capability checks through the pdf-ocr task instead
	// of image-to-text.
	PDFOCR bool `json:"pdfOcr,omitempty"`
}

type VisionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

type ImageRequest struct {
	Target
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n,omitempty"`
}

type ImageResponse struct {
	// Images are base64-encoded payloads.
	Images []string `json:"images"`
	Usage  Usage    `json:"usage"`
}

type SummarizeRequest struct {
	Target
	Text      string             `json:"text"`
	ChunkSize int                `json:"chunkSize,omitempty"`
	Overlap   int                `json:"overlap,omitempty"`
	Options   summarizer.Options `json:"options"`
}

type SummarizeResponse struct {
	Summary string  `json:"summary"`
	Chunks  int     `json:"chunks"`
	Usage   []Usage `json:"usage"`
}

// Service executes capability tasks against the resolved (or explicitly
// targeted) provider. These are the entry points the benchmark executor
// drives.
type Service interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
	Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error)
	Vision(ctx context.Context, req VisionRequest) (*VisionResponse, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)
}

type service struct {
	resolver taskresolver.Resolver
}

func New(resolver taskresolver.Resolver) (Service, error) {
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	return &service{resolver: resolver}, nil
}

const defaultChunkSize = 4000

// target resolves the provider instance and model for a request. An
// explicit provider requires an explicit model; a bare model override
// rides on the resolved provider.
func (s *service) target(ctx context.Context, task modelrepo.Task, t Target) (modelrepo.Provider, string, error) {
	if t.Provider != "" {
		if t.Model == "" {
			return nil, "", fmt.Errorf("%w: model is required when provider is set", apiframework.ErrBadRequest)
		}
		provider, err := s.resolver.ProviderByName(ctx, t.Provider)
		if err != nil {
			return nil, "", err
		}
		return provider, t.Model, nil
	}

	provider, cfg, err := s.resolver.ProviderFor(ctx, task)
	if err != nil {
		return nil, "", err
	}
	model := cfg.Model
	if t.Model != "" {
		model = t.Model
	}
	return provider, model, nil
}

func (s *service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages are required", apiframework.ErrBadRequest)
	}
	provider, model, err := s.target(ctx, modelrepo.TaskChatCompletion, req.Target)
	if err != nil {
		return nil, err
	}
	client, err := provider.GetChatConnection(ctx)
	if err != nil {
		return nil, err
	}

	var args []modelrepo.ChatArgument
	if req.Temperature != nil {
		args = append(args, modelrepo.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		args = append(args, modelrepo.WithMaxTokens(*req.MaxTokens))
	}

	result, usage, err := client.Chat(ctx, model, req.Messages, args...)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Message:      result.Message,
		FinishReason: result.FinishReason,
		Usage:        Usage{Provider: provider.GetType(), Model: usage.Model, Tokens: usage.Tokens},
	}, nil
}

func (s *service) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return nil, fmt.Errorf("%w: texts are required", apiframework.ErrBadRequest)
	}
	provider, model, err := s.target(ctx, modelrepo.TaskEmbedding, req.Target)
	if err != nil {
		return nil, err
	}
	client, err := provider.GetEmbedConnection(ctx)
	if err != nil {
		return nil, err
	}

	vectors, usage, err := client.Embed(ctx, model, req.Texts, req.InputType, req.Dimensions)
	if err != nil {
		return nil, err
	}
	return &EmbedResponse{
		Vectors: vectors,
		Usage:   Usage{Provider: provider.GetType(), Model: usage.Model, Tokens: usage.Tokens},
	}, nil
}

func (s *service) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error) {
	audio, err := decodePayload(req.AudioBase64, "audioBase64")
	if err != nil {
		return nil, err
	}
	provider, model, err := s.target(ctx, modelrepo.TaskTranscription, req.Target)
	if err != nil {
		return nil, err
	}
	client, err := provider.GetTranscribeConnection(ctx)
	if err != nil {
		return nil, err
	}

	transcription, usage, err := client.Transcribe(ctx, model, audio, req.Language)
	if err != nil {
		return nil, err
	}
	return &TranscribeResponse{
		Text:     transcription.Text,
		Language: transcription.Language,
		Duration: transcription.Duration,
		Usage:    Usage{Provider: provider.GetType(), Model: usage.Model, Tokens: usage.Tokens},
	}, nil
}

func (s *service) Vision(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	image, err := decodePayload(req.ImageBase64, "imageBase64")
	if err != nil {
		return nil, err
	}
	task := modelrepo.TaskImageToText
	if req.PDFOCR {
		task = modelrepo.TaskPDFOCR
	}
	provider, model, err := s.target(ctx, task, req.Target)
	if err != nil {
		return nil, err
	}
	client, err := provider.GetVisionConnection(ctx)
	if err != nil {
		return nil, err
	}

	text, usage, err := client.Describe(ctx, model, image, req.Prompt)
	if err != nil {
		return nil, err
	}
	return &VisionResponse{
		Text:  text,
		Usage: Usage{Provider: provider.GetType(), Model: usage.Model, Tokens: usage.Tokens},
	}, nil
}

func (s *service) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", apiframework.ErrBadRequest)
	}
	provider, model, err := s.target(ctx, modelrepo.TaskTextToImage, req.Target)
	if err != nil {
		return nil, err
	}
	client, err := provider.GetImageConnection(ctx)
	if err != nil {
		return nil, err
	}

	n := req.N
	if n < 1 {
		n = 1
	}
	images, usage, err := client.Generate(ctx, model, req.Prompt, req.Size, req.Quality, n)
	if err != nil {
		return nil, err
	}
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
	}
	return &ImageResponse{
		Images: encoded,
		Usage:  Usage{Provider: provider.GetType(), Model: usage.Model, Tokens: usage.Tokens},
	}, nil
}

func (s *service) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text is required", apiframework.ErrBadRequest)
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunks, err := summarizer.ChunkByChars(req.Text, chunkSize, req.Overlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apiframework.ErrBadRequest, err)
	}

	provider, model, err := s.target(ctx, modelrepo.TaskChatCompletion, req.Target)
	if err != nil {
		return nil, err
	}
	result, err := summarizer.Summarize(ctx, provider, model, chunks, req.Options)
	if err != nil {
		return nil, err
	}

	usage := make([]Usage, 0, len(result.Usage))
	for _, u := range result.Usage {
		usage = append(usage, Usage{Provider: provider.GetType(), Model: u.Model, Tokens: u.Tokens})
	}
	return &SummarizeResponse{
		Summary: result.Summary,
		Chunks:  len(chunks),
		Usage:   usage,
	}, nil
}

func decodePayload(encoded, field string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: %s is required", apiframework.ErrBadRequest, field)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64: %w", apiframework.ErrBadRequest, field, err)
	}
	return data, nil
}

func (s *service) GetServiceName() string {
	return "taskrunservice"
}
