package runtimetypes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/google/uuid"
)

// UpsertTestResult writes the single authoritative result for the
// (model key, task, size) identity, replacing any earlier row.
func (s *store) UpsertTestResult(ctx context.Context, result *TestResult) error {
	now := time.Now().UTC()
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	if result.ModelKey == "" {
		return fmt.Errorf("model key cannot be empty")
	}
	if _, _, err := SplitModelKey(result.ModelKey); err != nil {
		return err
	}
	if result.Task == "" || result.Size == "" {
		return fmt.Errorf("task and size cannot be empty")
	}
	switch result.Status {
	case ResultStatusSuccess, ResultStatusError:
	default:
		return fmt.Errorf("unknown result status %q", result.Status)
	}
	// Error rows never carry a score or embeddings.
	if result.Status == ResultStatusError {
		if result.Score != nil || len(result.InputEmbedding) > 0 || len(result.OutputEmbedding) > 0 {
			return fmt.Errorf("error result for %s must not carry a score or embeddings", result.ModelKey)
		}
	}

	_, err := s.Exec.ExecContext(ctx, `
		INSERT INTO bench_results
		(id, model_key, task, size, status, duration_ms, tokens, error_code, error_message,
		 checks, score, input_embedding, output_embedding, raw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (model_key, task, size) DO UPDATE
		SET status = $5, duration_ms = $6, tokens = $7, error_code = $8, error_message = $9,
		    checks = $10, score = $11, input_embedding = $12, output_embedding = $13,
		    raw = $14, updated_at = $16`,
		result.ID,
		result.ModelKey,
		result.Task,
		result.Size,
		result.Status,
		result.DurationMs,
		result.Tokens,
		result.ErrorCode,
		result.ErrorMessage,
		nullableJSON(result.Checks),
		result.Score,
		nullableJSON(result.InputEmbedding),
		nullableJSON(result.OutputEmbedding),
		nullableJSON(result.Raw),
		result.CreatedAt,
		result.UpdatedAt,
	)
	return err
}

func (s *store) GetTestResult(ctx context.Context, modelKey, task, size string) (*TestResult, error) {
	return scanTestResult(s.Exec.QueryRowContext(ctx, `
        SELECT id, model_key, task, size, status, duration_ms, tokens, error_code, error_message,
               checks, score, input_embedding, output_embedding, raw, created_at, updated_at
        FROM bench_results
        WHERE model_key = $1 AND task = $2 AND size = $3`,
		modelKey, task, size,
	))
}

func (s *store) ListTestResults(ctx context.Context, task, size string) ([]*TestResult, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, model_key, task, size, status, duration_ms, tokens, error_code, error_message,
               checks, score, input_embedding, output_embedding, raw, created_at, updated_at
        FROM bench_results
        WHERE task = $1 AND size = $2
        ORDER BY updated_at DESC, model_key DESC;
    `, task, size)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return collectTestResults(rows)
}

func (s *store) ListSuccessfulResults(ctx context.Context, task, size string) ([]*TestResult, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, model_key, task, size, status, duration_ms, tokens, error_code, error_message,
               checks, score, input_embedding, output_embedding, raw, created_at, updated_at
        FROM bench_results
        WHERE task = $1 AND size = $2 AND status = $3
        ORDER BY duration_ms ASC, model_key ASC;
    `, task, size, ResultStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return collectTestResults(rows)
}

func (s *store) ListResultsForModel(ctx context.Context, modelKey string) ([]*TestResult, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, model_key, task, size, status, duration_ms, tokens, error_code, error_message,
               checks, score, input_embedding, output_embedding, raw, created_at, updated_at
        FROM bench_results
        WHERE model_key = $1
        ORDER BY task ASC, size ASC;
    `, modelKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return collectTestResults(rows)
}

func (s *store) DeleteTestResult(ctx context.Context, modelKey, task, size string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM bench_results
		WHERE model_key = $1 AND task = $2 AND size = $3`,
		modelKey, task, size,
	)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	return checkRowsAffected(result)
}

func (s *store) EstimateTestResultCount(ctx context.Context) (int64, error) {
	return s.estimateCount(ctx, "bench_results")
}

func scanTestResult(row libdb.QueryRower) (*TestResult, error) {
	var result TestResult
	var tokens sql.Null[int]
	var score sql.Null[float64]
	var errorCode, errorMessage sql.Null[string]
	var checks, inputEmbedding, outputEmbedding, raw sql.Null[[]byte]
	err := row.Scan(
		&result.ID,
		&result.ModelKey,
		&result.Task,
		&result.Size,
		&result.Status,
		&result.DurationMs,
		&tokens,
		&errorCode,
		&errorMessage,
		&checks,
		&score,
		&inputEmbedding,
		&outputEmbedding,
		&raw,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, libdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tokens.Valid {
		result.Tokens = &tokens.V
	}
	if score.Valid {
		result.Score = &score.V
	}
	if errorCode.Valid {
		result.ErrorCode = errorCode.V
	}
	if errorMessage.Valid {
		result.ErrorMessage = errorMessage.V
	}
	if checks.Valid {
		result.Checks = checks.V
	}
	if inputEmbedding.Valid {
		result.InputEmbedding = inputEmbedding.V
	}
	if outputEmbedding.Valid {
		result.OutputEmbedding = outputEmbedding.V
	}
	if raw.Valid {
		result.Raw = raw.V
	}
	return &result, nil
}

func collectTestResults(rows *sql.Rows) ([]*TestResult, error) {
	defer rows.Close()

	results := []*TestResult{}
	for rows.Next() {
		result, err := scanTestResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, nil
}
