package openai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/modelrepo/openai"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, taskModels map[modelrepo.Task][]string) modelrepo.Provider {
	t.Helper()
	provider, err := openai.NewOpenAIProvider("sk-test", "", modelrepo.CapabilityConfig{
		TaskModels: taskModels,
	}, nil, nil)
	require.NoError(t, err)
	return provider
}

func TestUnit_OpenAIProvider_VisionServesPDFOCROnlyConfiguration(t *testing.T) {
	provider := newProvider(t, map[modelrepo.Task][]string{
		modelrepo.TaskPDFOCR: {"gpt-4o"},
	})

	client, err := provider.GetVisionConnection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestUnit_OpenAIProvider_VisionRequiresAVisionTask(t *testing.T) {
	provider := newProvider(t, map[modelrepo.Task][]string{
		modelrepo.TaskChatCompletion: {"gpt-4o-mini"},
	})

	_, err := provider.GetVisionConnection(context.Background())
	var capErr *modelrepo.CapabilityError
	require.True(t, errors.As(err, &capErr))
	require.Equal(t, "openai", capErr.Provider)
}
