package runtimesdk

import (
	"context"
	"net/http"

	"github.com/contenox/modelrouter/taskrunservice"
)

// HTTPTaskRunService implements the taskrunservice.Service interface
// using HTTP calls to the task execution entry points.
type HTTPTaskRunService struct {
	httpService
}

func NewHTTPTaskRunService(baseURL, token string, client *http.Client) taskrunservice.Service {
	return &HTTPTaskRunService{newHTTPService(baseURL, token, client)}
}

// envelope mirrors the "data" wrapper the task routes respond with.
type envelope[T any] struct {
	Data T `json:"data"`
}

func (s *HTTPTaskRunService) Chat(ctx context.Context, req taskrunservice.ChatRequest) (*taskrunservice.ChatResponse, error) {
	var resp envelope[*taskrunservice.ChatResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/chat", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *HTTPTaskRunService) Embed(ctx context.Context, req taskrunservice.EmbedRequest) (*taskrunservice.EmbedResponse, error) {
	var resp envelope[*taskrunservice.EmbedResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/embed", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *HTTPTaskRunService) Transcribe(ctx context.Context, req taskrunservice.TranscribeRequest) (*taskrunservice.TranscribeResponse, error) {
	var resp envelope[*taskrunservice.TranscribeResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/transcribe", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *HTTPTaskRunService) Vision(ctx context.Context, req taskrunservice.VisionRequest) (*taskrunservice.VisionResponse, error) {
	var resp envelope[*taskrunservice.VisionResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/vision", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *HTTPTaskRunService) GenerateImage(ctx context.Context, req taskrunservice.ImageRequest) (*taskrunservice.ImageResponse, error) {
	var resp envelope[*taskrunservice.ImageResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/image", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *HTTPTaskRunService) Summarize(ctx context.Context, req taskrunservice.SummarizeRequest) (*taskrunservice.SummarizeResponse, error) {
	var resp envelope[*taskrunservice.SummarizeResponse]
	if err := s.doJSON(ctx, "POST", "/api/tasks/summarize", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
