// Package modelrepo defines the capability-polymorphic provider contract.
//
// A Provider represents one backend vendor configured with per-task model
// lists. Capability queries (Supports, AvailableModels) never perform network
// I/O; actual vendor calls happen through the typed clients returned by the
// connection getters. Operations a provider does not implement fail with a
// *CapabilityError, never with a silent no-op.
package modelrepo

import (
	"context"
	"fmt"
	"time"
)

// Task is a named capability slot for which exactly one provider/model pair
// is resolved at a time.
type Task string

const (
	TaskTranscription  Task = "transcription"
	TaskImageToText    Task = "image-to-text"
	TaskPDFOCR         Task = "pdf-ocr"
	TaskChatCompletion Task = "chat-completion"
	TaskEmbedding      Task = "embedding"
	TaskTextToImage    Task = "text-to-image"
)

// AllTasks returns the closed set of known tasks.
func AllTasks() []Task {
	return []Task{
		TaskTranscription,
		TaskImageToText,
		TaskPDFOCR,
		TaskChatCompletion,
		TaskEmbedding,
		TaskTextToImage,
	}
}

// ParseTask validates a task name against the closed enum.
func ParseTask(name string) (Task, error) {
	for _, t := range AllTasks() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", name)
}

// CapabilityError reports that a provider does not implement a task. It is
// distinct from transport failures so callers can tell "cannot" from "failed".
type CapabilityError struct {
	Provider string
	Task     Task
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %q does not support task %q", e.Provider, e.Task)
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is the assistant reply of a chat completion.
type ChatResult struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// Transcription is the output of a speech-to-text call.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// UsageRecord accounts for a single vendor model call.
type UsageRecord struct {
	Model     string        `json:"model"`
	Purpose   string        `json:"purpose"`
	Tokens    int           `json:"tokens"`
	Duration  time.Duration `json:"duration"`
	Processor string        `json:"processor"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewUsageRecord builds a usage record. Vendors occasionally report zero
// tokens for billable calls; the count is floored to 1.
func NewUsageRecord(model, purpose, processor string, tokens int, started time.Time) UsageRecord {
	if tokens < 1 {
		tokens = 1
	}
	return UsageRecord{
		Model:     model,
		Purpose:   purpose,
		Tokens:    tokens,
		Duration:  time.Since(started),
		Processor: processor,
		Timestamp: time.Now().UTC(),
	}
}

// ChatConfig collects optional chat parameters.
type ChatConfig struct {
	Temperature *float64
	MaxTokens   *int
}

// ChatArgument mutates a ChatConfig.
type ChatArgument interface {
	Apply(*ChatConfig)
}

type chatArgFn func(*ChatConfig)

func (f chatArgFn) Apply(cfg *ChatConfig) { f(cfg) }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatArgument {
	return chatArgFn(func(cfg *ChatConfig) { cfg.Temperature = &t })
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ChatArgument {
	return chatArgFn(func(cfg *ChatConfig) { cfg.MaxTokens = &n })
}

// ChatClient executes chat completions.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []Message, args ...ChatArgument) (ChatResult, UsageRecord, error)
}

// TranscribeClient executes speech-to-text.
type TranscribeClient interface {
	Transcribe(ctx context.Context, model string, audio []byte, language string) (Transcription, UsageRecord, error)
}

// VisionClient describes images (and rendered PDF pages) with a prompt.
type VisionClient interface {
	Describe(ctx context.Context, model string, image []byte, prompt string, args ...ChatArgument) (string, UsageRecord, error)
}

// EmbedClient generates embedding vectors for a batch of texts.
type EmbedClient interface {
	Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, UsageRecord, error)
}

// ImageClient generates images from a prompt.
type ImageClient interface {
	Generate(ctx context.Context, model string, prompt string, size string, quality string, n int) ([][]byte, UsageRecord, error)
}

// Provider is one configured backend vendor.
type Provider interface {
	// GetID identifies this provider instance (name plus endpoint).
	GetID() string
	// GetType returns the vendor name, e.g. "openai".
	GetType() string
	// Supports answers capability queries without network I/O.
	Supports(task Task) bool
	// AvailableModels lists the model identifiers configured for a task.
	AvailableModels(task Task) []string

	GetChatConnection(ctx context.Context) (ChatClient, error)
	GetTranscribeConnection(ctx context.Context) (TranscribeClient, error)
	GetVisionConnection(ctx context.Context) (VisionClient, error)
	GetEmbedConnection(ctx context.Context) (EmbedClient, error)
	GetImageConnection(ctx context.Context) (ImageClient, error)
}

// CapabilityConfig declares which models a provider instance exposes per task.
type CapabilityConfig struct {
	TaskModels map[Task][]string
}

// Supports reports whether any model is configured for the task.
func (c CapabilityConfig) Supports(task Task) bool {
	return len(c.TaskModels[task]) > 0
}

// Models returns a copy of the configured model list for the task.
func (c CapabilityConfig) Models(task Task) []string {
	models := c.TaskModels[task]
	out := make([]string, len(models))
	copy(out, models)
	return out
}
