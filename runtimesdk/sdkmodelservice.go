package runtimesdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/contenox/modelrouter/modelservice"
	"github.com/contenox/modelrouter/runtimetypes"
)

// HTTPModelService implements the modelservice.Service interface using
// HTTP calls to the API.
type HTTPModelService struct {
	httpService
}

func NewHTTPModelService(baseURL, token string, client *http.Client) modelservice.Service {
	return &HTTPModelService{newHTTPService(baseURL, token, client)}
}

func (s *HTTPModelService) Append(ctx context.Context, record *runtimetypes.ModelRecord) error {
	return s.doJSON(ctx, "POST", "/api/models", record, record, http.StatusCreated)
}

func (s *HTTPModelService) Get(ctx context.Context, key string) (*runtimetypes.ModelRecord, error) {
	record := &runtimetypes.ModelRecord{}
	if err := s.doJSON(ctx, "GET", "/api/models/"+keyPath(key), nil, record, http.StatusOK); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *HTTPModelService) Update(ctx context.Context, record *runtimetypes.ModelRecord) error {
	if record.Key == "" {
		return fmt.Errorf("model record key is required to update")
	}
	return s.doJSON(ctx, "PUT", "/api/models/"+keyPath(record.Key), record, record, http.StatusOK)
}

func (s *HTTPModelService) List(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*runtimetypes.ModelRecord, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	if createdAtCursor != nil {
		query.Set("cursor", createdAtCursor.Format(time.RFC3339Nano))
	}
	var records []*runtimetypes.ModelRecord
	if err := s.doJSON(ctx, "GET", "/api/models?"+query.Encode(), nil, &records, http.StatusOK); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *HTTPModelService) ListForTask(ctx context.Context, task string) ([]*runtimetypes.ModelRecord, error) {
	var records []*runtimetypes.ModelRecord
	if err := s.doJSON(ctx, "GET", "/api/models/task/"+url.PathEscape(task), nil, &records, http.StatusOK); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *HTTPModelService) Delete(ctx context.Context, key string) error {
	return s.doJSON(ctx, "DELETE", "/api/models/"+keyPath(key), nil, nil, http.StatusOK)
}

// keyPath renders a model key into the route's provider/model segments.
// The model half may contain slashes, which the route's trailing
// wildcard accepts verbatim.
func keyPath(key string) string {
	provider, model, err := runtimetypes.SplitModelKey(key)
	if err != nil {
		return url.PathEscape(key)
	}
	return url.PathEscape(provider) + "/" + model
}
