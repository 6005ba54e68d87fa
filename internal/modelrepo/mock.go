package modelrepo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockProvider is a test double implementing Provider. Chat calls count
// concurrent invocations so tests can assert worker-pool bounds.
type MockProvider struct {
	ID           string
	Type         string
	Capability   CapabilityConfig
	ChatResponse func(model string, messages []Message) (string, error)
	ChatDelay    time.Duration
	EmbedVectors map[string][]float64

	mu             sync.Mutex
	calls          []UsageRecord
	active         int64
	MaxActiveCalls int64
}

func (m *MockProvider) GetID() string   { return m.ID }
func (m *MockProvider) GetType() string { return m.Type }

func (m *MockProvider) Supports(task Task) bool {
	return m.Capability.Supports(task)
}

func (m *MockProvider) AvailableModels(task Task) []string {
	return m.Capability.Models(task)
}

func (m *MockProvider) GetChatConnection(ctx context.Context) (ChatClient, error) {
	if !m.Supports(TaskChatCompletion) {
		return nil, &CapabilityError{Provider: m.Type, Task: TaskChatCompletion}
	}
	return m, nil
}

func (m *MockProvider) GetEmbedConnection(ctx context.Context) (EmbedClient, error) {
	if !m.Supports(TaskEmbedding) {
		return nil, &CapabilityError{Provider: m.Type, Task: TaskEmbedding}
	}
	return m, nil
}

func (m *MockProvider) GetTranscribeConnection(ctx context.Context) (TranscribeClient, error) {
	return nil, &CapabilityError{Provider: m.Type, Task: TaskTranscription}
}

func (m *MockProvider) GetVisionConnection(ctx context.Context) (VisionClient, error) {
	return nil, &CapabilityError{Provider: m.Type, Task: TaskImageToText}
}

func (m *MockProvider) GetImageConnection(ctx context.Context) (ImageClient, error) {
	return nil, &CapabilityError{Provider: m.Type, Task: TaskTextToImage}
}

func (m *MockProvider) Chat(ctx context.Context, model string, messages []Message, args ...ChatArgument) (ChatResult, UsageRecord, error) {
	started := time.Now()

	n := atomic.AddInt64(&m.active, 1)
	for {
		max := atomic.LoadInt64(&m.MaxActiveCalls)
		if n <= max || atomic.CompareAndSwapInt64(&m.MaxActiveCalls, max, n) {
			break
		}
	}
	defer atomic.AddInt64(&m.active, -1)

	if m.ChatDelay > 0 {
		select {
		case <-time.After(m.ChatDelay):
		case <-ctx.Done():
			return ChatResult{}, UsageRecord{}, ctx.Err()
		}
	}

	text := "mock response"
	if m.ChatResponse != nil {
		var err error
		text, err = m.ChatResponse(model, messages)
		if err != nil {
			return ChatResult{}, UsageRecord{}, err
		}
	}

	usage := NewUsageRecord(model, "mock", m.Type, len(text), started)
	m.mu.Lock()
	m.calls = append(m.calls, usage)
	m.mu.Unlock()

	return ChatResult{Message: Message{Role: "assistant", Content: text}}, usage, nil
}

func (m *MockProvider) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, UsageRecord, error) {
	started := time.Now()
	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		if v, ok := m.EmbedVectors[text]; ok {
			vectors = append(vectors, v)
			continue
		}
		// Deterministic pseudo-embedding derived from content length.
		vectors = append(vectors, []float64{float64(len(text)), 1, 0})
	}
	return vectors, NewUsageRecord(model, "mock-embed", m.Type, len(texts), started), nil
}

// Calls returns the usage records accumulated so far.
func (m *MockProvider) Calls() []UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UsageRecord, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Provider = (*MockProvider)(nil)
