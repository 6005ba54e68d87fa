package runtimesdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/selectorservice"
)

// HTTPBenchService implements the benchservice.Service interface using
// HTTP calls to the API.
type HTTPBenchService struct {
	httpService
}

func NewHTTPBenchService(baseURL, token string, client *http.Client) benchservice.Service {
	return &HTTPBenchService{newHTTPService(baseURL, token, client)}
}

type runRequest struct {
	Task     string `json:"task"`
	Size     string `json:"size"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type sweepRequest struct {
	Tasks []string `json:"tasks,omitempty"`
	Sizes []string `json:"sizes,omitempty"`
}

func (s *HTTPBenchService) Run(ctx context.Context, task, size, modelOverride, providerOverride string) (*runtimetypes.TestResult, error) {
	result := &runtimetypes.TestResult{}
	req := runRequest{Task: task, Size: size, Model: modelOverride, Provider: providerOverride}
	if err := s.doJSON(ctx, "POST", "/api/bench/run", req, result, http.StatusOK); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *HTTPBenchService) Sweep(ctx context.Context, tasks []string, sizes []string) ([]*runtimetypes.TestResult, error) {
	var results []*runtimetypes.TestResult
	req := sweepRequest{Tasks: tasks, Sizes: sizes}
	if err := s.doJSON(ctx, "POST", "/api/bench/sweep", req, &results, http.StatusOK); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *HTTPBenchService) GetResult(ctx context.Context, modelKey, task, size string) (*runtimetypes.TestResult, error) {
	query := url.Values{}
	query.Set("model", modelKey)
	query.Set("task", task)
	query.Set("size", size)
	result := &runtimetypes.TestResult{}
	if err := s.doJSON(ctx, "GET", "/api/bench/result?"+query.Encode(), nil, result, http.StatusOK); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *HTTPBenchService) ListResults(ctx context.Context, task, size string) ([]*runtimetypes.TestResult, error) {
	query := url.Values{}
	if task != "" {
		query.Set("task", task)
	}
	if size != "" {
		query.Set("size", size)
	}
	var results []*runtimetypes.TestResult
	if err := s.doJSON(ctx, "GET", "/api/bench/results?"+query.Encode(), nil, &results, http.StatusOK); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *HTTPBenchService) ListCases(ctx context.Context) ([]*benchservice.TestCase, error) {
	var cases []*benchservice.TestCase
	if err := s.doJSON(ctx, "GET", "/api/bench/cases", nil, &cases, http.StatusOK); err != nil {
		return nil, err
	}
	return cases, nil
}

// HTTPSelectorService implements the selectorservice.Service interface
// using HTTP calls to the API.
type HTTPSelectorService struct {
	httpService
}

func NewHTTPSelectorService(baseURL, token string, client *http.Client) selectorservice.Service {
	return &HTTPSelectorService{newHTTPService(baseURL, token, client)}
}

func (s *HTTPSelectorService) BestModel(ctx context.Context, task, size, criterion string) (*selectorservice.Selection, error) {
	query := url.Values{}
	query.Set("task", task)
	query.Set("size", size)
	query.Set("criterion", criterion)
	selection := &selectorservice.Selection{}
	if err := s.doJSON(ctx, "GET", "/api/bench/best?"+query.Encode(), nil, selection, http.StatusOK); err != nil {
		return nil, err
	}
	return selection, nil
}

// HTTPConfigService exposes the task configuration surface.
type HTTPConfigService struct {
	httpService
}

func NewHTTPConfigService(baseURL, token string, client *http.Client) *HTTPConfigService {
	return &HTTPConfigService{newHTTPService(baseURL, token, client)}
}

type overrideRequest struct {
	ModelKey string `json:"modelKey"`
}

// TaskConfig mirrors the resolver's resolved configuration for a task.
type TaskConfig struct {
	Task     string `json:"task"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Source   string `json:"source"`
}

func (s *HTTPConfigService) GetTaskConfig(ctx context.Context, task string) (*TaskConfig, error) {
	cfg := &TaskConfig{}
	if err := s.doJSON(ctx, "GET", "/api/tasks/"+url.PathEscape(task)+"/config", nil, cfg, http.StatusOK); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *HTTPConfigService) SetOverride(ctx context.Context, task, modelKey string) error {
	return s.doJSON(ctx, "PUT", "/api/tasks/"+url.PathEscape(task)+"/current-model", overrideRequest{ModelKey: modelKey}, nil, http.StatusOK)
}

func (s *HTTPConfigService) ClearOverride(ctx context.Context, task string) error {
	return s.doJSON(ctx, "DELETE", "/api/tasks/"+url.PathEscape(task)+"/current-model", nil, nil, http.StatusOK)
}

func (s *HTTPConfigService) Reload(ctx context.Context) error {
	return s.doJSON(ctx, "POST", "/api/config/reload", nil, nil, http.StatusOK)
}
