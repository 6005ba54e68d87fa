package serverapi

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/taskresolver"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	DatabaseURL      string `json:"database_url"`
	SQLitePath       string `json:"sqlite_path"`
	Port             string `json:"port"`
	Addr             string `json:"addr"`
	NATSURL          string `json:"nats_url"`
	NATSUser         string `json:"nats_user"`
	NATSPassword     string `json:"nats_password"`
	KVAddr           string `json:"kv_addr"`
	KVPassword       string `json:"kv_password"`
	StaticConfigPath string `json:"static_config_path"`
	// ScoreModel is the model key of the embedding model backing the
	// quality scorer, e.g. "openai/text-embedding-3-small".
	ScoreModel string `json:"score_model"`
	// SelfBaseURL is where the benchmark executor reaches this node's
	// own entry points. Defaults to the listen address.
	SelfBaseURL  string `json:"self_base_url"`
	BenchTimeout string `json:"bench_timeout"`
	// SweepInterval enables the periodic benchmark sweep loop when set to
	// a parseable duration, e.g. "6h". Empty disables the loop.
	SweepInterval string `json:"sweep_interval"`
}

// LoadConfig populates cfg from environment variables, matching JSON
// field names case-insensitively.
func LoadConfig[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config pointer is nil")
	}
	config := map[string]string{}
	for _, kvPair := range os.Environ() {
		ar := strings.SplitN(kvPair, "=", 2)
		if len(ar) < 2 {
			continue
		}
		key := strings.ToLower(ar[0])
		value := ar[1]
		config[key] = value
	}

	b, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal env vars: %w", err)
	}
	err = json.Unmarshal(b, cfg)
	if err != nil {
		return fmt.Errorf("failed to unmarshal into config struct: %w", err)
	}

	return nil
}

// defaultStaticConfig is the baseline vendor wiring. A config file
// overrides or extends it; credentials always come from the file or
// environment, never from here.
func defaultStaticConfig() taskresolver.StaticConfig {
	return taskresolver.StaticConfig{
		Providers: map[string]taskresolver.ProviderSettings{
			"openai": {
				Enabled: true,
				TaskModels: map[modelrepo.Task][]string{
					modelrepo.TaskChatCompletion: {"gpt-4o", "gpt-4o-mini"},
					modelrepo.TaskEmbedding:      {"text-embedding-3-small", "text-embedding-3-large"},
					modelrepo.TaskTranscription:  {"whisper-1"},
					modelrepo.TaskImageToText:    {"gpt-4o"},
					modelrepo.TaskPDFOCR:         {"gpt-4o"},
					modelrepo.TaskTextToImage:    {"dall-e-3"},
				},
			},
			"gemini": {
				Enabled: true,
				TaskModels: map[modelrepo.Task][]string{
					modelrepo.TaskChatCompletion: {"gemini-2.0-flash"},
					modelrepo.TaskEmbedding:      {"text-embedding-004"},
					modelrepo.TaskImageToText:    {"gemini-2.0-flash"},
					modelrepo.TaskPDFOCR:         {"gemini-2.0-flash"},
				},
			},
			"ollama": {
				Enabled: true,
				TaskModels: map[modelrepo.Task][]string{
					modelrepo.TaskChatCompletion: {"llama3.2"},
					modelrepo.TaskEmbedding:      {"nomic-embed-text"},
				},
			},
			"mistral": {
				TaskModels: map[modelrepo.Task][]string{
					modelrepo.TaskChatCompletion: {"mistral-small-latest"},
					modelrepo.TaskEmbedding:      {"mistral-embed"},
					modelrepo.TaskTranscription:  {"voxtral-mini-latest"},
				},
			},
			"vllm": {
				TaskModels: map[modelrepo.Task][]string{},
			},
		},
		TaskDefaults: map[modelrepo.Task]taskresolver.ModelConfig{
			modelrepo.TaskChatCompletion: {Provider: "openai", Model: "gpt-4o-mini"},
			modelrepo.TaskEmbedding:      {Provider: "openai", Model: "text-embedding-3-small"},
			modelrepo.TaskTranscription:  {Provider: "openai", Model: "whisper-1"},
			modelrepo.TaskImageToText:    {Provider: "openai", Model: "gpt-4o"},
			modelrepo.TaskPDFOCR:         {Provider: "gemini", Model: "gemini-2.0-flash"},
			modelrepo.TaskTextToImage:    {Provider: "openai", Model: "dall-e-3"},
		},
	}
}

// LoadStaticConfig reads the vendor configuration file and merges it
// over the built-in defaults. An empty path returns the defaults.
func LoadStaticConfig(path string) (taskresolver.StaticConfig, error) {
	cfg := taskresolver.StaticConfig{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read static config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse static config %s: %w", path, err)
		}
	}
	if err := mergo.Merge(&cfg, defaultStaticConfig()); err != nil {
		return cfg, fmt.Errorf("failed to merge config defaults: %w", err)
	}
	return cfg, nil
}
