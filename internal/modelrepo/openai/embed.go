package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

type OpenAIEmbedClient struct {
	openAIClient
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIEmbedClient) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(texts) == 0 {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("no input texts for embedding")
	}

	req := openAIEmbedRequest{Model: model, Input: texts}
	if dimensions > 0 {
		req.Dimensions = &dimensions
	}

	var response openAIEmbedResponse
	if err := c.sendRequest(ctx, "/embeddings", req, &response); err != nil {
		return nil, modelrepo.UsageRecord{}, err
	}
	if len(response.Data) != len(texts) {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("expected %d embeddings, got %d from model %s", len(texts), len(response.Data), model)
	}

	// Responses carry an index; order by it rather than trusting slice order.
	vectors := make([][]float64, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, modelrepo.UsageRecord{}, fmt.Errorf("embedding index %d out of range for model %s", item.Index, model)
		}
		vectors[item.Index] = item.Embedding
	}

	usage := modelrepo.NewUsageRecord(model, "embedding", "openai", response.Usage.TotalTokens, started)
	return vectors, usage, nil
}
