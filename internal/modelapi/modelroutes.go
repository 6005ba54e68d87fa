package modelapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	serverops "github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/modelservice"
	"github.com/contenox/modelrouter/runtimetypes"
)

// AddModelRoutes mounts the model record management surface.
func AddModelRoutes(mux *http.ServeMux, modelService modelservice.Service) {
	m := &modelManager{modelService: modelService}

	mux.HandleFunc("POST /api/models", m.append)
	mux.HandleFunc("GET /api/models", m.list)
	mux.HandleFunc("GET /api/models/task/{task}", m.listForTask)
	mux.HandleFunc("GET /api/models/{provider}/{model...}", m.get)
	mux.HandleFunc("PUT /api/models/{provider}/{model...}", m.update)
	mux.HandleFunc("DELETE /api/models/{provider}/{model...}", m.delete)
}

type modelManager struct {
	modelService modelservice.Service
}

// modelKeyFromPath reassembles the composite record key from the path.
// The model half may itself contain slashes, hence the trailing wildcard.
func modelKeyFromPath(r *http.Request) (string, error) {
	provider := serverops.GetPathParam(r, "provider")
	model := serverops.GetPathParam(r, "model")
	if provider == "" || model == "" {
		return "", errors.New("provider and model are required in path")
	}
	return runtimetypes.ModelKey(provider, model), nil
}

func splitKey(key string) (string, string, error) {
	provider, model, err := runtimetypes.SplitModelKey(key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", serverops.ErrBadPathValue, err)
	}
	return provider, model, nil
}

// Declares a model record. The composite key is derived from provider
// and model name.
func (m *modelManager) append(w http.ResponseWriter, r *http.Request) {
	record, err := serverops.Decode[runtimetypes.ModelRecord](r) // @request runtimetypes.ModelRecord
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	if err := m.modelService.Append(r.Context(), &record); err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusCreated, record) // @response runtimetypes.ModelRecord
}

// Lists model records with cursor pagination.
func (m *modelManager) list(w http.ResponseWriter, r *http.Request) {
	limitStr := serverops.GetQueryParam(r, "limit", "100")
	cursorStr := serverops.GetQueryParam(r, "cursor", "")

	var cursor *time.Time
	if cursorStr != "" {
		t, err := time.Parse(time.RFC3339Nano, cursorStr)
		if err != nil {
			err = fmt.Errorf("%w: invalid cursor format, expected RFC3339Nano", serverops.ErrUnprocessableEntity)
			_ = serverops.Error(w, r, err, serverops.ListOperation)
			return
		}
		cursor = &t
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		err = fmt.Errorf("%w: invalid limit format, expected integer", serverops.ErrUnprocessableEntity)
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}

	records, err := m.modelService.List(r.Context(), cursor, limit)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, records) // @response []runtimetypes.ModelRecord
}

// Lists the model records declaring support for one task.
func (m *modelManager) listForTask(w http.ResponseWriter, r *http.Request) {
	task := serverops.GetPathParam(r, "task")
	records, err := m.modelService.ListForTask(r.Context(), task)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, records) // @response []runtimetypes.ModelRecord
}

func (m *modelManager) get(w http.ResponseWriter, r *http.Request) {
	key, err := modelKeyFromPath(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	record, err := m.modelService.Get(r.Context(), key)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, record) // @response runtimetypes.ModelRecord
}

// Updates a record's task list, enablement, or metadata. The identity
// half of the record is immutable.
func (m *modelManager) update(w http.ResponseWriter, r *http.Request) {
	key, err := modelKeyFromPath(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	record, err := serverops.Decode[runtimetypes.ModelRecord](r) // @request runtimetypes.ModelRecord
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	record.Key = key
	record.Provider, record.ModelName, err = splitKey(key)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	if err := m.modelService.Update(r.Context(), &record); err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, record) // @response runtimetypes.ModelRecord
}

func (m *modelManager) delete(w http.ResponseWriter, r *http.Request) {
	key, err := modelKeyFromPath(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}
	if err := m.modelService.Delete(r.Context(), key); err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, "model record removed") // @response string
}
