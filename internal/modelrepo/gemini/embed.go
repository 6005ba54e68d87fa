package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

type GeminiEmbedClient struct {
	geminiClient
}

type geminiEmbedContentRequest struct {
	Requests []geminiEmbedRequestItem `json:"requests"`
}

type geminiEmbedRequestItem struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality *int          `json:"outputDimensionality,omitempty"`
}

type geminiEmbedContentResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

func (c *GeminiEmbedClient) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(texts) == 0 {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("no input texts for embedding")
	}

	request := geminiEmbedContentRequest{
		Requests: make([]geminiEmbedRequestItem, 0, len(texts)),
	}
	for _, text := range texts {
		item := geminiEmbedRequestItem{
			Model: "models/" + model,
			Content: geminiContent{
				Parts: []geminiPart{{Text: text}},
			},
		}
		if dimensions > 0 {
			item.OutputDimensionality = &dimensions
		}
		request.Requests = append(request.Requests, item)
	}

	endpoint := fmt.Sprintf("/v1beta/models/%s:batchEmbedContents", model)
	var response geminiEmbedContentResponse
	if err := c.sendRequest(ctx, model, endpoint, request, &response); err != nil {
		return nil, modelrepo.UsageRecord{}, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, modelrepo.UsageRecord{}, fmt.Errorf("expected %d embeddings, got %d from Gemini model %s", len(texts), len(response.Embeddings), model)
	}

	vectors := make([][]float64, 0, len(response.Embeddings))
	for _, e := range response.Embeddings {
		if len(e.Values) == 0 {
			return nil, modelrepo.UsageRecord{}, fmt.Errorf("no embedding values returned from Gemini for model %s", model)
		}
		vectors = append(vectors, e.Values)
	}

	usage := modelrepo.NewUsageRecord(model, "embedding", "gemini", len(texts), started)
	return vectors, usage, nil
}

var _ modelrepo.EmbedClient = (*GeminiEmbedClient)(nil)
