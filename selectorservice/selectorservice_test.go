package selectorservice_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/taskresolver"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/selectorservice"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	cfg taskresolver.TaskConfig
	err error
}

func (s *stubResolver) Resolve(ctx context.Context, task modelrepo.Task) (taskresolver.TaskConfig, error) {
	return s.cfg, s.err
}

func (s *stubResolver) ProviderFor(ctx context.Context, task modelrepo.Task) (modelrepo.Provider, taskresolver.TaskConfig, error) {
	return nil, s.cfg, s.err
}

func (s *stubResolver) ProviderByName(ctx context.Context, name string) (modelrepo.Provider, error) {
	return nil, s.err
}

func (s *stubResolver) SetOverride(ctx context.Context, task modelrepo.Task, modelKey string) error {
	return nil
}

func (s *stubResolver) ClearOverride(ctx context.Context, task modelrepo.Task) error {
	return nil
}

func (s *stubResolver) Static() taskresolver.StaticConfig {
	return taskresolver.StaticConfig{}
}

func (s *stubResolver) Reload(ctx context.Context) error {
	return nil
}

func setupSelector(t *testing.T, resolver taskresolver.Resolver) (context.Context, selectorservice.Service, runtimetypes.Store) {
	t.Helper()
	ctx := context.TODO()

	dbManager, err := libdb.NewSQLiteDBManager(ctx, filepath.Join(t.TempDir(), "selector.db"), runtimetypes.SchemaSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dbManager.Close()) })

	service, err := selectorservice.New(dbManager, resolver, nil)
	require.NoError(t, err)

	return ctx, service, runtimetypes.New(dbManager.WithoutTransaction())
}

func seedResult(t *testing.T, ctx context.Context, store runtimetypes.Store, modelKey string, durationMs int64, tokens *int) {
	t.Helper()
	require.NoError(t, store.UpsertTestResult(ctx, &runtimetypes.TestResult{
		ModelKey:   modelKey,
		Task:       string(modelrepo.TaskChatCompletion),
		Size:       "small",
		Status:     runtimetypes.ResultStatusSuccess,
		DurationMs: durationMs,
		Tokens:     tokens,
	}))
}

func intPtr(v int) *int { return &v }

func TestUnit_Selector_DurationPicksFastest(t *testing.T) {
	ctx, service, store := setupSelector(t, &stubResolver{})

	seedResult(t, ctx, store, "openai/gpt-4o", 900, intPtr(40))
	seedResult(t, ctx, store, "gemini/gemini-2.0-flash", 300, intPtr(80))
	seedResult(t, ctx, store, "mistral/mistral-small", 600, intPtr(20))

	selection, err := service.BestModel(ctx, "chat-completion", "small", selectorservice.CriterionDuration)
	require.NoError(t, err)
	require.Equal(t, "gemini/gemini-2.0-flash", selection.ModelKey)
	require.True(t, selection.FromBenchmark)
}

func TestUnit_Selector_TokensPicksCheapestAndRanksMissingLast(t *testing.T) {
	ctx, service, store := setupSelector(t, &stubResolver{})

	seedResult(t, ctx, store, "openai/gpt-4o", 100, nil)
	seedResult(t, ctx, store, "gemini/gemini-2.0-flash", 300, intPtr(80))
	seedResult(t, ctx, store, "mistral/mistral-small", 600, intPtr(20))

	selection, err := service.BestModel(ctx, "chat-completion", "small", selectorservice.CriterionTokens)
	require.NoError(t, err)
	require.Equal(t, "mistral/mistral-small", selection.ModelKey)
}

func TestUnit_Selector_ErrorResultsNeverWin(t *testing.T) {
	ctx, service, store := setupSelector(t, &stubResolver{})

	require.NoError(t, store.UpsertTestResult(ctx, &runtimetypes.TestResult{
		ModelKey:     "openai/gpt-4o",
		Task:         string(modelrepo.TaskChatCompletion),
		Size:         "small",
		Status:       runtimetypes.ResultStatusError,
		ErrorCode:    "TIMEOUT",
		ErrorMessage: "request timed out",
		DurationMs:   5,
	}))
	seedResult(t, ctx, store, "mistral/mistral-small", 600, nil)

	selection, err := service.BestModel(ctx, "chat-completion", "small", selectorservice.CriterionReliability)
	require.NoError(t, err)
	require.Equal(t, "mistral/mistral-small", selection.ModelKey)
}

func TestUnit_Selector_UnknownCriterionDegradesToDuration(t *testing.T) {
	ctx, service, store := setupSelector(t, &stubResolver{})

	seedResult(t, ctx, store, "openai/gpt-4o", 900, nil)
	seedResult(t, ctx, store, "gemini/gemini-2.0-flash", 300, nil)

	selection, err := service.BestModel(ctx, "chat-completion", "small", "fastest")
	require.NoError(t, err)
	require.Equal(t, "gemini/gemini-2.0-flash", selection.ModelKey)
	require.Equal(t, selectorservice.CriterionDuration, selection.Criterion)
}

func TestUnit_Selector_FallsBackToResolvedConfiguration(t *testing.T) {
	resolver := &stubResolver{cfg: taskresolver.TaskConfig{
		Task:     modelrepo.TaskChatCompletion,
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Source:   taskresolver.SourceStatic,
	}}
	ctx, service, _ := setupSelector(t, resolver)

	selection, err := service.BestModel(ctx, "chat-completion", "small", selectorservice.CriterionDuration)
	require.NoError(t, err)
	require.Equal(t, "openai/gpt-4o-mini", selection.ModelKey)
	require.False(t, selection.FromBenchmark)
}

func TestUnit_Selector_NoDataAndNoConfigurationFails(t *testing.T) {
	resolver := &stubResolver{err: taskresolver.ErrTaskNotConfigured}
	ctx, service, _ := setupSelector(t, resolver)

	_, err := service.BestModel(ctx, "text-to-image", "small", selectorservice.CriterionDuration)
	require.Error(t, err)
	require.ErrorIs(t, err, taskresolver.ErrTaskNotConfigured)
}

func TestUnit_Selector_RejectsUnknownTask(t *testing.T) {
	ctx, service, _ := setupSelector(t, &stubResolver{})

	_, err := service.BestModel(ctx, "poetry", "small", selectorservice.CriterionDuration)
	require.Error(t, err)
	require.True(t, errors.Is(err, selectorservice.ErrUnknownTask))
}
