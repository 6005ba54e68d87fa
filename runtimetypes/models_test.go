package runtimetypes_test

import (
	"testing"

	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/stretchr/testify/require"
)

func TestUnit_ModelKey_SplitOnFirstSlashOnly(t *testing.T) {
	provider, model, err := runtimetypes.SplitModelKey("openai/gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "openai", provider)
	require.Equal(t, "gpt-4o-mini", model)

	// Model names may carry slashes themselves.
	provider, model, err = runtimetypes.SplitModelKey("vllm/meta-llama/Llama-3.1-8B")
	require.NoError(t, err)
	require.Equal(t, "vllm", provider)
	require.Equal(t, "meta-llama/Llama-3.1-8B", model)

	require.Equal(t, "vllm/meta-llama/Llama-3.1-8B", runtimetypes.ModelKey(provider, model))
}

func TestUnit_ModelKey_RejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"", "noslash", "/leading", "trailing/"} {
		_, _, err := runtimetypes.SplitModelKey(key)
		require.Error(t, err, "key %q should be rejected", key)
	}
}

func TestUnit_ModelRecord_ValidateKeyRejectsMismatch(t *testing.T) {
	record := &runtimetypes.ModelRecord{
		Key:       "openai/gpt-4o-mini",
		Provider:  "gemini",
		ModelName: "gpt-4o-mini",
	}
	require.Error(t, record.ValidateKey())

	record.Provider = "openai"
	require.NoError(t, record.ValidateKey())
}

func TestUnit_ModelRecords_CRUDCycle(t *testing.T) {
	ctx, s := runtimetypes.SetupStore(t)

	record := &runtimetypes.ModelRecord{
		Provider:  "openai",
		ModelName: "gpt-4o-mini",
		Tasks:     []string{"chat-completion", "embedding"},
		Enabled:   true,
	}
	require.NoError(t, s.AppendModelRecord(ctx, record))
	require.Equal(t, "openai/gpt-4o-mini", record.Key)

	got, err := s.GetModelRecord(ctx, "openai/gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, record.Key, got.Key)
	require.Equal(t, []string{"chat-completion", "embedding"}, got.Tasks)
	require.True(t, got.Enabled)

	got.Tasks = append(got.Tasks, "image-to-text")
	got.Enabled = false
	require.NoError(t, s.UpdateModelRecord(ctx, got))

	updated, err := s.GetModelRecord(ctx, "openai/gpt-4o-mini")
	require.NoError(t, err)
	require.False(t, updated.Enabled)
	require.Len(t, updated.Tasks, 3)

	require.NoError(t, s.DeleteModelRecord(ctx, "openai/gpt-4o-mini"))
	_, err = s.GetModelRecord(ctx, "openai/gpt-4o-mini")
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestUnit_ModelRecords_ListForTask(t *testing.T) {
	ctx, s := runtimetypes.SetupStore(t)

	require.NoError(t, s.AppendModelRecord(ctx, &runtimetypes.ModelRecord{
		Provider:  "openai",
		ModelName: "gpt-4o-mini",
		Tasks:     []string{"chat-completion"},
		Enabled:   true,
	}))
	require.NoError(t, s.AppendModelRecord(ctx, &runtimetypes.ModelRecord{
		Provider:  "mistral",
		ModelName: "voxtral-mini",
		Tasks:     []string{"transcription"},
		Enabled:   true,
	}))

	chat, err := s.ListModelRecordsForTask(ctx, "chat-completion")
	require.NoError(t, err)
	require.Len(t, chat, 1)
	require.Equal(t, "openai/gpt-4o-mini", chat[0].Key)

	all, err := s.ListAllModelRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUnit_ModelRecords_AppendRejectsInvalidIdentity(t *testing.T) {
	ctx, s := runtimetypes.SetupStore(t)

	err := s.AppendModelRecord(ctx, &runtimetypes.ModelRecord{
		Key:       "openai/gpt-4o",
		Provider:  "openai",
		ModelName: "gpt-4o-mini",
	})
	require.Error(t, err)
}
