// Package taskresolver resolves "which provider and model serve task X".
//
// Resolution is layered: a live override in the KV store wins when it names
// a model record that actually exists, otherwise the static per-task
// default applies. A task with neither source is a configuration error.
// Provider-level settings (enabled flag, credentials) are checked lazily,
// only when a provider instance is requested.
package taskresolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/providerreg"
	"github.com/contenox/modelrouter/libkvstore"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/contenox/modelrouter/runtimetypes"
)

var (
	ErrTaskNotConfigured     = errors.New("task has no configured provider or model")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrProviderDisabled      = errors.New("provider is disabled")
	ErrMissingCredential     = errors.New("provider credential is missing")
)

// ModelConfig names one provider/model pair.
type ModelConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// ProviderSettings is the static bootstrap configuration for one vendor.
type ProviderSettings struct {
	APIKey     string                      `json:"apiKey" yaml:"apiKey"`
	BaseURL    string                      `json:"baseUrl" yaml:"baseUrl"`
	Enabled    bool                        `json:"enabled" yaml:"enabled"`
	TaskModels map[modelrepo.Task][]string `json:"taskModels" yaml:"taskModels"`
}

// requiresCredential reports whether the vendor needs an API key. Local
// runtimes authenticate by reachability, not by key.
func requiresCredential(provider string) bool {
	switch provider {
	case "ollama", "vllm":
		return false
	}
	return true
}

// StaticConfig is the bootstrap fallback layer.
type StaticConfig struct {
	Providers    map[string]ProviderSettings    `json:"providers" yaml:"providers"`
	TaskDefaults map[modelrepo.Task]ModelConfig `json:"taskDefaults" yaml:"taskDefaults"`
}

// TaskConfig is one resolved task.
type TaskConfig struct {
	Task     modelrepo.Task `json:"task"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Source   string         `json:"source"`
}

const (
	SourceOverride = "override"
	SourceStatic   = "static"
)

// OverrideKey is where the live current-model override for a task lives in
// the KV store. The stored value is a model key, "{provider}/{model}".
func OverrideKey(task modelrepo.Task) string {
	return "task:" + string(task) + ":current-model"
}

// Resolver produces task configurations and provider instances.
type Resolver interface {
	Resolve(ctx context.Context, task modelrepo.Task) (TaskConfig, error)
	ProviderFor(ctx context.Context, task modelrepo.Task) (modelrepo.Provider, TaskConfig, error)
	ProviderByName(ctx context.Context, name string) (modelrepo.Provider, error)
	SetOverride(ctx context.Context, task modelrepo.Task, modelKey string) error
	ClearOverride(ctx context.Context, task modelrepo.Task) error
	Static() StaticConfig
	Reload(ctx context.Context) error
}

type resolver struct {
	kv       libkvstore.KVExec
	store    runtimetypes.Store
	registry *providerreg.Registry
	static   StaticConfig
	client   *http.Client
	tracker  libtracker.ActivityTracker

	mu       sync.RWMutex
	snapshot map[modelrepo.Task]TaskConfig
}

func New(kv libkvstore.KVExec, store runtimetypes.Store, registry *providerreg.Registry, static StaticConfig, client *http.Client, tracker libtracker.ActivityTracker) (Resolver, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &resolver{
		kv:       kv,
		store:    store,
		registry: registry,
		static:   static,
		client:   client,
		tracker:  tracker,
		snapshot: make(map[modelrepo.Task]TaskConfig),
	}, nil
}

func (r *resolver) Static() StaticConfig {
	return r.static
}

func (r *resolver) Resolve(ctx context.Context, task modelrepo.Task) (TaskConfig, error) {
	r.mu.RLock()
	if cfg, ok := r.snapshot[task]; ok {
		r.mu.RUnlock()
		return cfg, nil
	}
	r.mu.RUnlock()

	reportErr, reportChange, end := r.tracker.Start(ctx, "resolve", "task", "task", string(task))
	defer end()

	cfg, err := r.resolveUncached(ctx, task)
	if err != nil {
		reportErr(err)
		return TaskConfig{}, err
	}
	reportChange("task_resolved", cfg)

	r.mu.Lock()
	r.snapshot[task] = cfg
	r.mu.Unlock()
	return cfg, nil
}

func (r *resolver) resolveUncached(ctx context.Context, task modelrepo.Task) (TaskConfig, error) {
	// Layer 1: live override, valid only when the model record exists.
	if r.kv != nil {
		raw, err := r.kv.Get(ctx, OverrideKey(task))
		if err == nil && len(raw) > 0 {
			var modelKey string
			if err := json.Unmarshal(raw, &modelKey); err != nil {
				modelKey = ""
			}
			if modelKey != "" {
				if record, err := r.store.GetModelRecord(ctx, modelKey); err == nil && record.Enabled {
					provider, model, err := runtimetypes.SplitModelKey(modelKey)
					if err == nil {
						return TaskConfig{
							Task:     task,
							Provider: provider,
							Model:    model,
							Source:   SourceOverride,
						}, nil
					}
				}
			}
		} else if err != nil && !errors.Is(err, libkvstore.ErrNotFound) {
			return TaskConfig{}, fmt.Errorf("override lookup failed for task %s: %w", task, err)
		}
	}

	// Layer 2: static bootstrap default.
	if def, ok := r.static.TaskDefaults[task]; ok && def.Provider != "" && def.Model != "" {
		return TaskConfig{
			Task:     task,
			Provider: def.Provider,
			Model:    def.Model,
			Source:   SourceStatic,
		}, nil
	}

	return TaskConfig{}, fmt.Errorf("%w: %s", ErrTaskNotConfigured, task)
}

// ProviderFor resolves the task and constructs (or fetches the cached)
// provider instance, validating enablement and credentials at this point
// and not earlier.
func (r *resolver) ProviderFor(ctx context.Context, task modelrepo.Task) (modelrepo.Provider, TaskConfig, error) {
	cfg, err := r.Resolve(ctx, task)
	if err != nil {
		return nil, TaskConfig{}, err
	}

	provider, err := r.ProviderByName(ctx, cfg.Provider)
	if err != nil {
		return nil, TaskConfig{}, fmt.Errorf("%w (task %s)", err, task)
	}
	return provider, cfg, nil
}

// ProviderByName constructs (or fetches the cached) provider instance for
// an explicitly named vendor, with the same enablement and credential
// checks ProviderFor applies.
func (r *resolver) ProviderByName(ctx context.Context, name string) (modelrepo.Provider, error) {
	settings, ok := r.static.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, name)
	}
	if !settings.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrProviderDisabled, name)
	}
	if settings.APIKey == "" && requiresCredential(name) {
		return nil, fmt.Errorf("%w: %q needs an API key", ErrMissingCredential, name)
	}

	return r.registry.Get(name, providerreg.Settings{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Capability: modelrepo.CapabilityConfig{TaskModels: settings.TaskModels},
		HTTPClient: r.client,
		Tracker:    r.tracker,
	})
}

// SetOverride writes the live current-model override for a task. The model
// key must name an existing record; otherwise the override would silently
// never take effect.
func (r *resolver) SetOverride(ctx context.Context, task modelrepo.Task, modelKey string) error {
	if r.kv == nil {
		return errors.New("no override store configured")
	}
	if _, _, err := runtimetypes.SplitModelKey(modelKey); err != nil {
		return err
	}
	if _, err := r.store.GetModelRecord(ctx, modelKey); err != nil {
		return fmt.Errorf("override target %q is not a known model record: %w", modelKey, err)
	}
	value, err := json.Marshal(modelKey)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, OverrideKey(task), value)
}

func (r *resolver) ClearOverride(ctx context.Context, task modelrepo.Task) error {
	if r.kv == nil {
		return errors.New("no override store configured")
	}
	err := r.kv.Delete(ctx, OverrideKey(task))
	if errors.Is(err, libkvstore.ErrNotFound) {
		return nil
	}
	return err
}

// Reload drops the resolved snapshot and the registry's instance cache as
// one operation, so no stale provider survives a configuration change.
func (r *resolver) Reload(ctx context.Context) error {
	reportErr, reportChange, end := r.tracker.Start(ctx, "reload", "resolver")
	defer end()
	_ = reportErr

	r.mu.Lock()
	r.snapshot = make(map[modelrepo.Task]TaskConfig)
	r.registry.Clear()
	r.mu.Unlock()

	reportChange("configuration_reloaded", nil)
	return nil
}
