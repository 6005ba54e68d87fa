package taskapi

import (
	"context"
	"errors"
	"net/http"

	serverops "github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/taskresolver"
	"github.com/contenox/modelrouter/taskrunservice"
)

// AddTaskRoutes mounts the task execution entry points. These are the
// routes the benchmark executor drives end-to-end.
func AddTaskRoutes(mux *http.ServeMux, runService taskrunservice.Service) {
	t := &taskManager{runService: runService}

	mux.HandleFunc("POST /api/tasks/chat", t.chat)
	mux.HandleFunc("POST /api/tasks/embed", t.embed)
	mux.HandleFunc("POST /api/tasks/transcribe", t.transcribe)
	mux.HandleFunc("POST /api/tasks/vision", t.vision)
	mux.HandleFunc("POST /api/tasks/image", t.image)
	mux.HandleFunc("POST /api/tasks/summarize", t.summarize)
}

// AddTaskConfigRoutes mounts the per-task configuration surface backed
// by the resolver's override layer. broadcast, when non-nil, announces a
// reload to the other nodes.
func AddTaskConfigRoutes(mux *http.ServeMux, resolver taskresolver.Resolver, broadcast func(ctx context.Context) error) {
	c := &configManager{resolver: resolver, broadcast: broadcast}

	mux.HandleFunc("GET /api/tasks/{task}/config", c.get)
	mux.HandleFunc("PUT /api/tasks/{task}/current-model", c.setOverride)
	mux.HandleFunc("DELETE /api/tasks/{task}/current-model", c.clearOverride)
	mux.HandleFunc("POST /api/config/reload", c.reload)
}

type taskManager struct {
	runService taskrunservice.Service
}

// envelope wraps every task execution response so consumers (and the
// benchmark fixtures) address fields under a stable "data" root.
type envelope[T any] struct {
	Data T `json:"data"`
}

func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, envelope[T]{Data: v})
}

// Executes a chat completion through the resolved (or explicitly
// targeted) provider.
func (t *taskManager) chat(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.ChatRequest](r) // @request taskrunservice.ChatRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.Chat(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.ChatResponse]
}

// Generates embedding vectors for a batch of texts.
func (t *taskManager) embed(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.EmbedRequest](r) // @request taskrunservice.EmbedRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.Embed(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.EmbedResponse]
}

// Transcribes base64-encoded audio to text.
func (t *taskManager) transcribe(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.TranscribeRequest](r) // @request taskrunservice.TranscribeRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.Transcribe(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.TranscribeResponse]
}

// Describes a base64-encoded image, or extracts text from a rendered
// document page when pdfOcr is set.
func (t *taskManager) vision(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.VisionRequest](r) // @request taskrunservice.VisionRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.Vision(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.VisionResponse]
}

// Generates images from a text prompt.
func (t *taskManager) image(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.ImageRequest](r) // @request taskrunservice.ImageRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.GenerateImage(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.ImageResponse]
}

// Summarizes long text through the chunked map-reduce pipeline.
func (t *taskManager) summarize(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[taskrunservice.SummarizeRequest](r) // @request taskrunservice.SummarizeRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	resp, err := t.runService.Summarize(r.Context(), req)
	respond(w, r, resp, err) // @response taskapi.envelope[taskrunservice.SummarizeResponse]
}

type configManager struct {
	resolver  taskresolver.Resolver
	broadcast func(ctx context.Context) error
}

type OverrideRequest struct {
	ModelKey string `json:"modelKey"`
}

func parseTask(r *http.Request) (modelrepo.Task, error) {
	raw := serverops.GetPathParam(r, "task")
	if raw == "" {
		return "", errors.New("task is required in path")
	}
	return modelrepo.ParseTask(raw)
}

// Returns the currently resolved configuration for a task.
func (c *configManager) get(w http.ResponseWriter, r *http.Request) {
	task, err := parseTask(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	cfg, err := c.resolver.Resolve(r.Context(), task)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, cfg) // @response taskresolver.TaskConfig
}

// Sets the live current-model override for a task. The override takes
// effect on the next configuration reload.
func (c *configManager) setOverride(w http.ResponseWriter, r *http.Request) {
	task, err := parseTask(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	req, err := serverops.Decode[OverrideRequest](r) // @request taskapi.OverrideRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	if err := c.resolver.SetOverride(r.Context(), task, req.ModelKey); err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, "override set") // @response string
}

// Removes the live current-model override for a task.
func (c *configManager) clearOverride(w http.ResponseWriter, r *http.Request) {
	task, err := parseTask(r)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}
	if err := c.resolver.ClearOverride(r.Context(), task); err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, "override cleared") // @response string
}

// Drops the resolver snapshot and the provider instance cache, then
// announces the reload on the bus so every other node follows.
func (c *configManager) reload(w http.ResponseWriter, r *http.Request) {
	if err := c.resolver.Reload(r.Context()); err != nil {
		_ = serverops.Error(w, r, err, serverops.ServerOperation)
		return
	}
	if c.broadcast != nil {
		if err := c.broadcast(r.Context()); err != nil {
			_ = serverops.Error(w, r, err, serverops.ServerOperation)
			return
		}
	}
	_ = serverops.Encode(w, r, http.StatusOK, "configuration reloaded") // @response string
}
