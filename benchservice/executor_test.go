package benchservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/providerreg"
	"github.com/contenox/modelrouter/internal/qualityscore"
	"github.com/contenox/modelrouter/internal/taskresolver"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/libkvstore"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func (m *memKV) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, libkvstore.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	return m.Set(ctx, key, value)
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memKV) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func setupHarness(t *testing.T, handler http.Handler, timeout time.Duration, scorer *qualityscore.Scorer) (context.Context, *benchservice.Executor, runtimetypes.Store) {
	t.Helper()
	ctx := context.TODO()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dbManager, err := libdb.NewSQLiteDBManager(ctx, filepath.Join(t.TempDir(), "bench.db"), runtimetypes.SchemaSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dbManager.Close()) })
	store := runtimetypes.New(dbManager.WithoutTransaction())

	static := taskresolver.StaticConfig{
		Providers: map[string]taskresolver.ProviderSettings{
			"openai": {
				APIKey:  "sk-test",
				Enabled: true,
				TaskModels: map[modelrepo.Task][]string{
					modelrepo.TaskChatCompletion: {"gpt-4o-mini"},
				},
			},
		},
		TaskDefaults: map[modelrepo.Task]taskresolver.ModelConfig{
			modelrepo.TaskChatCompletion: {Provider: "openai", Model: "gpt-4o-mini"},
		},
	}
	resolver, err := taskresolver.New(&memKV{data: map[string]json.RawMessage{}}, store, providerreg.NewWithDefaults(), static, nil, nil)
	require.NoError(t, err)

	executor, err := benchservice.NewExecutor(resolver, scorer, dbManager, benchservice.ExecutorConfig{
		BaseURL: server.URL,
		Timeout: timeout,
	}, nil, nil, nil)
	require.NoError(t, err)

	return ctx, executor, store
}

func chatCase() *benchservice.TestCase {
	return &benchservice.TestCase{
		Task:        string(modelrepo.TaskChatCompletion),
		Size:        benchservice.SizeSmall,
		Description: "small chat",
		Endpoint:    "/api/tasks/chat",
		Method:      http.MethodPost,
		Parameters: map[string]any{
			"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		},
		ExpectedFieldPaths:        []string{"$.data.message.content"},
		ValidateStructuredPayload: true,
	}
}

func goodChatHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"message": map[string]any{"role": "assistant", "content": "hello"},
				"usage":   map[string]any{"model": "gpt-4o-mini", "tokens": 42},
			},
		})
	})
}

func TestUnit_Executor_SuccessPathPersistsResult(t *testing.T) {
	ctx, executor, store := setupHarness(t, goodChatHandler(), 5*time.Second, nil)

	result, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusSuccess, result.Status)
	require.Equal(t, "openai/gpt-4o-mini", result.ModelKey)
	require.NotNil(t, result.Tokens)
	require.Equal(t, 42, *result.Tokens)

	stored, err := store.GetTestResult(ctx, "openai/gpt-4o-mini", string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusSuccess, stored.Status)

	var checks []benchservice.CheckResult
	require.NoError(t, json.Unmarshal(stored.Checks, &checks))
	for _, c := range checks {
		require.True(t, c.Valid, "check %s should pass", c.Name)
	}
}

func TestUnit_Executor_JSONValidationFailureStillPersists(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// message content present, but "data" is a string, not an object.
		json.NewEncoder(w).Encode(map[string]any{
			"data": "not an object",
		})
	})
	ctx, executor, store := setupHarness(t, handler, 5*time.Second, nil)

	result, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusError, result.Status)

	stored, err := store.GetTestResult(ctx, "openai/gpt-4o-mini", string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)

	var checks []benchservice.CheckResult
	require.NoError(t, json.Unmarshal(stored.Checks, &checks))
	var jsonCheck *benchservice.CheckResult
	for i := range checks {
		if checks[i].Name == "json_validation" {
			jsonCheck = &checks[i]
		}
	}
	require.NotNil(t, jsonCheck, "json_validation check must be recorded")
	require.False(t, jsonCheck.Valid)
}

func TestUnit_Executor_TimeoutIsReportedAndPersisted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	ctx, executor, store := setupHarness(t, handler, 50*time.Millisecond, nil)

	result, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusError, result.Status)
	require.Equal(t, benchservice.CodeTimeout, result.ErrorCode)
	require.Nil(t, result.Score)

	stored, err := store.GetTestResult(ctx, "openai/gpt-4o-mini", string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.Equal(t, benchservice.CodeTimeout, stored.ErrorCode)
}

func TestUnit_Executor_ModelOverrideMustBeAvailable(t *testing.T) {
	ctx, executor, store := setupHarness(t, goodChatHandler(), 5*time.Second, nil)

	result, err := executor.Execute(ctx, chatCase(), "gpt-imaginary", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusError, result.Status)
	require.Equal(t, benchservice.CodeModelNotAvailable, result.ErrorCode)

	stored, err := store.GetTestResult(ctx, "openai/gpt-imaginary", string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.Equal(t, benchservice.CodeModelNotAvailable, stored.ErrorCode)
}

func TestUnit_Executor_ExplicitOverridesWinOutright(t *testing.T) {
	ctx, executor, _ := setupHarness(t, goodChatHandler(), 5*time.Second, nil)

	result, err := executor.Execute(ctx, chatCase(), "custom/model", "vllm")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusSuccess, result.Status)
	require.Equal(t, "vllm/custom/model", result.ModelKey)
}

func TestUnit_Executor_UnsupportedMethod(t *testing.T) {
	ctx, executor, _ := setupHarness(t, goodChatHandler(), 5*time.Second, nil)

	testCase := chatCase()
	testCase.Method = "PATCH"
	result, err := executor.Execute(ctx, testCase, "", "")
	require.NoError(t, err)
	require.Equal(t, benchservice.CodeUnsupportedMethod, result.ErrorCode)
}

func TestUnit_Executor_RerunReplacesResult(t *testing.T) {
	ctx, executor, store := setupHarness(t, goodChatHandler(), 5*time.Second, nil)

	_, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	_, err = executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)

	results, err := store.ListTestResults(ctx, string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestUnit_Executor_ScorerFailureDoesNotDowngradeSuccess(t *testing.T) {
	// Vectors of mismatched length force a shape error inside the scorer.
	mock := &modelrepo.MockProvider{
		Type: "mock",
		Capability: modelrepo.CapabilityConfig{
			TaskModels: map[modelrepo.Task][]string{
				modelrepo.TaskEmbedding: {"embed-small"},
			},
		},
		EmbedVectors: map[string][]float64{},
	}
	scorer, err := qualityscore.New(&mismatchedEmbed{inner: mock}, "embed-small", nil)
	require.NoError(t, err)

	ctx, executor, _ := setupHarness(t, goodChatHandler(), 5*time.Second, scorer)

	result, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusSuccess, result.Status)
	require.Nil(t, result.Score)
}

func TestUnit_Executor_SuccessWithScore(t *testing.T) {
	mock := &modelrepo.MockProvider{
		Type: "mock",
		Capability: modelrepo.CapabilityConfig{
			TaskModels: map[modelrepo.Task][]string{
				modelrepo.TaskEmbedding: {"embed-small"},
			},
		},
	}
	scorer, err := qualityscore.New(mock, "embed-small", nil)
	require.NoError(t, err)

	ctx, executor, store := setupHarness(t, goodChatHandler(), 5*time.Second, scorer)

	result, err := executor.Execute(ctx, chatCase(), "", "")
	require.NoError(t, err)
	require.Equal(t, runtimetypes.ResultStatusSuccess, result.Status)
	require.NotNil(t, result.Score)
	require.GreaterOrEqual(t, *result.Score, 0.0)
	require.LessOrEqual(t, *result.Score, 1.0)

	stored, err := store.GetTestResult(ctx, "openai/gpt-4o-mini", string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	require.NotEmpty(t, stored.InputEmbedding)
}

// mismatchedEmbed returns vectors of different lengths to trigger a shape
// error in the scorer.
type mismatchedEmbed struct {
	inner modelrepo.EmbedClient
}

func (m *mismatchedEmbed) Embed(ctx context.Context, model string, texts []string, inputType string, dimensions int) ([][]float64, modelrepo.UsageRecord, error) {
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = make([]float64, i+1)
		for j := range vectors[i] {
			vectors[i][j] = 1
		}
	}
	return vectors, modelrepo.UsageRecord{}, nil
}

func TestUnit_Loader_ServesEmbeddedFixtures(t *testing.T) {
	loader, err := benchservice.NewLoader()
	require.NoError(t, err)

	c, err := loader.Load(string(modelrepo.TaskChatCompletion), benchservice.SizeSmall)
	require.NoError(t, err)
	require.Equal(t, string(modelrepo.TaskChatCompletion), c.Task)
	require.Equal(t, benchservice.SizeSmall, c.Size)
	require.NotEmpty(t, c.ExpectedFieldPaths)

	_, err = loader.Load("chat-completion", "gigantic")
	require.Error(t, err)

	require.NotEmpty(t, loader.List())
}
