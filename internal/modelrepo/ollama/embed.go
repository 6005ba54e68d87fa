package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/ollama/ollama/api"
)

type OllamaEmbedClient struct {
	ollamaClient *api.Client
	backendURL   string
	tracker      libtracker.ActivityTracker
}

func (c *OllamaEmbedClient) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, modelrepo.UsageRecord, error) {
	started := time.Now()
	reportErr, reportChange, end := c.tracker.Start(ctx, "embed", "ollama", "model", model)
	defer end()

	if len(texts) == 0 {
		err := fmt.Errorf("no input texts for embedding")
		reportErr(err)
		return nil, modelrepo.UsageRecord{}, err
	}

	// The daemon's embedding endpoint takes one prompt per call.
	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		req := &api.EmbeddingRequest{
			Model:  model,
			Prompt: text,
		}
		resp, err := c.ollamaClient.Embeddings(ctx, req)
		if err != nil {
			reportErr(err)
			return nil, modelrepo.UsageRecord{}, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Embedding) == 0 {
			err := fmt.Errorf("no embedding values returned from ollama for model %s", model)
			reportErr(err)
			return nil, modelrepo.UsageRecord{}, err
		}
		vectors = append(vectors, resp.Embedding)
	}

	reportChange("embedding_completed", map[string]any{
		"vector_count": len(vectors),
	})
	usage := modelrepo.NewUsageRecord(model, "embedding", "ollama", len(texts), started)
	return vectors, usage, nil
}

var _ modelrepo.EmbedClient = (*OllamaEmbedClient)(nil)
