package runtimetypes

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/stretchr/testify/require"
)

const MAXLIMIT = 1000

var ErrLimitParamExceeded = fmt.Errorf("limit exceeds maximum allowed value")

// ModelRecord is one provider/model pair known to the system. Its key is
// "{provider}/{model}" and never changes; only attributes mutate.
type ModelRecord struct {
	Key       string          `json:"key" example:"openai/gpt-4o-mini"`
	Provider  string          `json:"provider" example:"openai"`
	ModelName string          `json:"modelName" example:"gpt-4o-mini"`
	Tasks     []string        `json:"tasks" example:"chat-completion,embedding"`
	Enabled   bool            `json:"enabled" example:"true"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt" example:"2023-11-15T14:30:45Z"`
	UpdatedAt time.Time       `json:"updatedAt" example:"2023-11-15T14:30:45Z"`
}

// TestResult is the single authoritative benchmark outcome for one
// (model key, task, size). A later run replaces the earlier row.
type TestResult struct {
	ID              string          `json:"id" example:"r1a2b3c4-d5e6-f7a8-b9c0-d1e2f3a4b5c6"`
	ModelKey        string          `json:"modelKey" example:"openai/gpt-4o-mini"`
	Task            string          `json:"task" example:"chat-completion"`
	Size            string          `json:"size" example:"small"`
	Status          string          `json:"status" example:"success"`
	DurationMs      int64           `json:"durationMs" example:"1532"`
	Tokens          *int            `json:"tokens,omitempty" example:"412"`
	ErrorCode       string          `json:"errorCode,omitempty" example:"TIMEOUT"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	Checks          json.RawMessage `json:"checks,omitempty"`
	Score           *float64        `json:"score,omitempty" example:"0.87"`
	InputEmbedding  json.RawMessage `json:"inputEmbedding,omitempty"`
	OutputEmbedding json.RawMessage `json:"outputEmbedding,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" example:"2023-11-15T14:30:45Z"`
	UpdatedAt       time.Time       `json:"updatedAt" example:"2023-11-15T14:30:45Z"`
}

const (
	ResultStatusSuccess = "success"
	ResultStatusError   = "error"
)

// KV represents a key-value pair in the database
type KV struct {
	Key       string          `json:"key" example:"bench:last-run:chat-completion:small"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt" example:"2023-11-15T14:30:45Z"`
	UpdatedAt time.Time       `json:"updatedAt" example:"2023-11-15T14:30:45Z"`
}

// ModelKey composes the canonical "{provider}/{model}" identity.
func ModelKey(provider, modelName string) string {
	return provider + "/" + modelName
}

// SplitModelKey splits on the first slash only; model names may contain
// slashes themselves.
func SplitModelKey(key string) (provider, modelName string, err error) {
	idx := strings.Index(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("invalid model key %q: want \"provider/model\"", key)
	}
	return key[:idx], key[idx+1:], nil
}

// ValidateKey rejects records whose halves do not reconstruct the key.
func (m *ModelRecord) ValidateKey() error {
	if m.Key == "" {
		return fmt.Errorf("model record key cannot be empty")
	}
	if ModelKey(m.Provider, m.ModelName) != m.Key {
		return fmt.Errorf("model record identity mismatch: %q + %q does not compose %q", m.Provider, m.ModelName, m.Key)
	}
	return nil
}

type Store interface {
	AppendModelRecord(ctx context.Context, record *ModelRecord) error
	GetModelRecord(ctx context.Context, key string) (*ModelRecord, error)
	UpdateModelRecord(ctx context.Context, record *ModelRecord) error
	DeleteModelRecord(ctx context.Context, key string) error
	ListAllModelRecords(ctx context.Context) ([]*ModelRecord, error)
	ListModelRecords(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*ModelRecord, error)
	ListModelRecordsForTask(ctx context.Context, task string) ([]*ModelRecord, error)
	EstimateModelRecordCount(ctx context.Context) (int64, error)

	UpsertTestResult(ctx context.Context, result *TestResult) error
	GetTestResult(ctx context.Context, modelKey, task, size string) (*TestResult, error)
	ListTestResults(ctx context.Context, task, size string) ([]*TestResult, error)
	ListSuccessfulResults(ctx context.Context, task, size string) ([]*TestResult, error)
	ListResultsForModel(ctx context.Context, modelKey string) ([]*TestResult, error)
	DeleteTestResult(ctx context.Context, modelKey, task, size string) error
	EstimateTestResultCount(ctx context.Context) (int64, error)

	SetKV(ctx context.Context, key string, value json.RawMessage) error
	UpdateKV(ctx context.Context, key string, value json.RawMessage) error
	GetKV(ctx context.Context, key string, out interface{}) error
	DeleteKV(ctx context.Context, key string) error
	ListKV(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*KV, error)
	ListKVPrefix(ctx context.Context, prefix string, createdAtCursor *time.Time, limit int) ([]*KV, error)
	EstimateKVCount(ctx context.Context) (int64, error)

	EnforceMaxRowCount(ctx context.Context, count int64) error
}

//go:embed schema.sql
var Schema string

//go:embed schema_sqlite.sql
var SchemaSQLite string

type store struct {
	libdb.Exec
}

func New(exec libdb.Exec) Store {
	if exec == nil {
		panic("SERVER BUG: store.New called with nil exec")
	}
	return &store{exec}
}

const MaxRowsCount = 100000

// sqliteCountableTables is the whitelist for SELECT COUNT(*) fallback when estimate_row_count is not available (e.g. SQLite).
var sqliteCountableTables = map[string]bool{
	"model_records": true, "bench_results": true, "kv": true,
}

func (s *store) estimateCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.Exec.QueryRowContext(ctx, `
		SELECT estimate_row_count($1)
	`, table).Scan(&count)
	if err == nil {
		return count, nil
	}
	// SQLite has no estimate_row_count; fall back to COUNT(*) for whitelisted tables only.
	if !strings.Contains(err.Error(), "no such function") {
		return 0, err
	}
	if !sqliteCountableTables[table] {
		return 0, err
	}
	err = s.Exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	return count, err
}

func (s *store) EnforceMaxRowCount(ctx context.Context, count int64) error {
	if count >= MaxRowsCount {
		return fmt.Errorf("row limit reached (max %d)", MaxRowsCount)
	}
	return nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return libdb.ErrNotFound
	}
	return nil
}

func quiet() func() {
	null, _ := os.Open(os.DevNull)
	sout := os.Stdout
	serr := os.Stderr
	os.Stdout = null
	os.Stderr = null
	log.SetOutput(null)
	return func() {
		defer null.Close()
		os.Stdout = sout
		os.Stderr = serr
		log.SetOutput(os.Stderr)
	}
}

// SetupStore initializes a test Postgres instance and returns the store.
func SetupStore(t *testing.T) (context.Context, Store) {
	t.Helper()

	// Silence logs
	unquiet := quiet()
	t.Cleanup(unquiet)

	ctx := context.TODO()
	connStr, _, cleanup, err := libdb.SetupLocalInstance(ctx, "test", "test", "test")
	require.NoError(t, err)

	dbManager, err := libdb.NewPostgresDBManager(ctx, connStr, Schema)
	require.NoError(t, err)

	// Cleanup DB and container
	t.Cleanup(func() {
		require.NoError(t, dbManager.Close())
		cleanup()
	})

	s := New(dbManager.WithoutTransaction())
	return ctx, s
}
