package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
)

// GeminiVisionClient describes images and scanned documents through
// generateContent with inline data parts.
type GeminiVisionClient struct {
	geminiClient
}

func (c *GeminiVisionClient) Describe(ctx context.Context, model string, image []byte, prompt string, args ...modelrepo.ChatArgument) (string, modelrepo.UsageRecord, error) {
	started := time.Now()
	if len(image) == 0 {
		return "", modelrepo.UsageRecord{}, fmt.Errorf("empty image payload")
	}
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}

	mimeType := http.DetectContentType(image)
	req := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}

	text, tokens, err := c.generateText(ctx, model, req)
	if err != nil {
		return "", modelrepo.UsageRecord{}, err
	}

	usage := modelrepo.NewUsageRecord(model, "vision", "gemini", tokens, started)
	return text, usage, nil
}

var _ modelrepo.VisionClient = (*GeminiVisionClient)(nil)
