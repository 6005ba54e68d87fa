// Package providerreg holds the process-wide table of provider
// constructors and a cache of instantiated providers.
//
// Instances are cached per provider name and endpoint so repeated
// resolutions reuse HTTP clients instead of rebuilding them. Clear drops
// the cache; it runs as part of configuration reload.
package providerreg

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/modelrepo/gemini"
	"github.com/contenox/modelrouter/internal/modelrepo/mistral"
	"github.com/contenox/modelrouter/internal/modelrepo/ollama"
	"github.com/contenox/modelrouter/internal/modelrepo/openai"
	"github.com/contenox/modelrouter/internal/modelrepo/vllm"
	"github.com/contenox/modelrouter/libtracker"
)

// Settings carries the per-instance knobs a constructor needs.
type Settings struct {
	APIKey     string
	BaseURL    string
	Capability modelrepo.CapabilityConfig
	HTTPClient *http.Client
	Tracker    libtracker.ActivityTracker
}

// Constructor builds a provider instance from settings.
type Constructor func(Settings) (modelrepo.Provider, error)

// Registry maps provider names to constructors and caches built instances.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	instances    map[string]modelrepo.Provider
}

func New() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		instances:    make(map[string]modelrepo.Provider),
	}
}

// NewWithDefaults returns a registry with all built-in vendors registered.
func NewWithDefaults() *Registry {
	r := New()
	r.Register("openai", func(s Settings) (modelrepo.Provider, error) {
		return openai.NewOpenAIProvider(s.APIKey, s.BaseURL, s.Capability, s.HTTPClient, s.Tracker)
	})
	r.Register("gemini", func(s Settings) (modelrepo.Provider, error) {
		return gemini.NewGeminiProvider(s.APIKey, s.BaseURL, s.Capability, s.HTTPClient, s.Tracker)
	})
	r.Register("ollama", func(s Settings) (modelrepo.Provider, error) {
		return ollama.NewOllamaProvider(s.BaseURL, s.Capability, s.HTTPClient, s.Tracker)
	})
	r.Register("vllm", func(s Settings) (modelrepo.Provider, error) {
		return vllm.NewVLLMProvider(s.APIKey, s.BaseURL, s.Capability, s.HTTPClient, s.Tracker)
	})
	r.Register("mistral", func(s Settings) (modelrepo.Provider, error) {
		return mistral.NewMistralProvider(s.APIKey, s.BaseURL, s.Capability, s.HTTPClient, s.Tracker)
	})
	return r
}

// Register installs a constructor under a name, replacing any previous one.
// Replacing a constructor invalidates cached instances for that name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
	for key := range r.instances {
		if instanceName(key) == name {
			delete(r.instances, key)
		}
	}
}

// IsRegistered reports whether a constructor exists for the name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// ListRegistered returns the sorted names of registered constructors.
func (r *Registry) ListRegistered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the cached instance for name and endpoint, constructing it on
// first use. Two configurations of the same vendor pointed at different
// endpoints are distinct instances.
func (r *Registry) Get(name string, settings Settings) (modelrepo.Provider, error) {
	key := instanceKey(name, settings.BaseURL)

	r.mu.RLock()
	if p, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered under %q", name)
	}

	p, err := ctor(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to construct provider %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have built it while we were constructing.
	if existing, ok := r.instances[key]; ok {
		return existing, nil
	}
	r.instances[key] = p
	return p, nil
}

// Clear drops all cached instances. Constructors stay registered.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]modelrepo.Provider)
}

func instanceKey(name, baseURL string) string {
	if baseURL == "" {
		baseURL = "default"
	}
	return name + "|" + baseURL
}

func instanceName(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}
