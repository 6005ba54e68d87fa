package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/ollama/ollama/api"
)

type OllamaChatClient struct {
	ollamaClient *api.Client
	backendURL   string
	tracker      libtracker.ActivityTracker
}

func (c *OllamaChatClient) Chat(ctx context.Context, model string, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, modelrepo.UsageRecord, error) {
	started := time.Now()
	reportErr, reportChange, end := c.tracker.Start(ctx, "chat", "ollama", "model", model)
	defer end()

	apiMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	config := &modelrepo.ChatConfig{}
	for _, arg := range args {
		arg.Apply(config)
	}

	llamaOptions := make(map[string]any)
	if config.Temperature != nil {
		llamaOptions["temperature"] = *config.Temperature
	}
	if config.MaxTokens != nil {
		llamaOptions["num_predict"] = *config.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   &stream,
		Options:  llamaOptions,
	}

	var finalResponse api.ChatResponse
	err := c.ollamaClient.Chat(ctx, req, func(cr api.ChatResponse) error {
		if cr.Done {
			finalResponse = cr
		}
		return nil
	})
	if err != nil {
		reportErr(err)
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, fmt.Errorf("ollama chat API call failed for model %s: %w", model, err)
	}

	if !finalResponse.Done {
		err := fmt.Errorf("no completion received from ollama for model %s", model)
		reportErr(err)
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}
	if finalResponse.Message.Content == "" {
		err := fmt.Errorf("empty content from model %s despite normal completion", model)
		reportErr(err)
		return modelrepo.ChatResult{}, modelrepo.UsageRecord{}, err
	}

	tokens := finalResponse.Metrics.PromptEvalCount + finalResponse.Metrics.EvalCount
	usage := modelrepo.NewUsageRecord(model, "chat", "ollama", tokens, started)
	result := modelrepo.ChatResult{
		Message: modelrepo.Message{
			Role:    finalResponse.Message.Role,
			Content: finalResponse.Message.Content,
		},
		FinishReason: finalResponse.DoneReason,
	}

	reportChange("chat_completed", result)
	return result, usage, nil
}

var _ modelrepo.ChatClient = (*OllamaChatClient)(nil)
