package runtimetypes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	libdb "github.com/contenox/modelrouter/libdbexec"
)

func (s *store) AppendModelRecord(ctx context.Context, record *ModelRecord) error {
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Key == "" && record.Provider != "" && record.ModelName != "" {
		record.Key = ModelKey(record.Provider, record.ModelName)
	}
	if err := record.ValidateKey(); err != nil {
		return err
	}
	tasks, err := json.Marshal(record.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode task list: %w", err)
	}
	_, err = s.Exec.ExecContext(ctx, `
		INSERT INTO model_records
		(key, provider, model_name, tasks, enabled, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.Key,
		record.Provider,
		record.ModelName,
		tasks,
		record.Enabled,
		nullableJSON(record.Metadata),
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

func (s *store) GetModelRecord(ctx context.Context, key string) (*ModelRecord, error) {
	record, err := scanModelRecord(s.Exec.QueryRowContext(ctx, `
        SELECT key, provider, model_name, tasks, enabled, metadata, created_at, updated_at
        FROM model_records
        WHERE key = $1`,
		key,
	))
	if err != nil {
		return nil, err
	}
	// Stored halves must still compose the key they were stored under.
	if err := record.ValidateKey(); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *store) UpdateModelRecord(ctx context.Context, record *ModelRecord) error {
	now := time.Now().UTC()
	record.UpdatedAt = now
	if err := record.ValidateKey(); err != nil {
		return err
	}
	tasks, err := json.Marshal(record.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode task list: %w", err)
	}

	// Identity is immutable; only attributes mutate.
	result, err := s.Exec.ExecContext(ctx, `
		UPDATE model_records
		SET
			tasks = $2,
			enabled = $3,
			metadata = $4,
			updated_at = $5
		WHERE key = $1`,
		record.Key,
		tasks,
		record.Enabled,
		nullableJSON(record.Metadata),
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update model record: %w", err)
	}

	return checkRowsAffected(result)
}

func (s *store) DeleteModelRecord(ctx context.Context, key string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM model_records
		WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete model record: %w", err)
	}

	return checkRowsAffected(result)
}

func (s *store) ListAllModelRecords(ctx context.Context) ([]*ModelRecord, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT key, provider, model_name, tasks, enabled, metadata, created_at, updated_at
        FROM model_records
        ORDER BY created_at DESC, key DESC;
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query model records: %w", err)
	}
	return collectModelRecords(rows)
}

func (s *store) ListModelRecords(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*ModelRecord, error) {
	cursor := time.Now().UTC()
	if createdAtCursor != nil {
		cursor = *createdAtCursor
	}
	if limit > MAXLIMIT {
		return nil, ErrLimitParamExceeded
	}
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT key, provider, model_name, tasks, enabled, metadata, created_at, updated_at
        FROM model_records
        WHERE created_at < $1
        ORDER BY created_at DESC, key DESC
        LIMIT $2;
    `, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query model records: %w", err)
	}
	return collectModelRecords(rows)
}

// ListModelRecordsForTask filters in memory; the task set is stored as a
// JSON array and stays portable between Postgres and SQLite that way.
func (s *store) ListModelRecordsForTask(ctx context.Context, task string) ([]*ModelRecord, error) {
	records, err := s.ListAllModelRecords(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]*ModelRecord, 0, len(records))
	for _, record := range records {
		for _, t := range record.Tasks {
			if t == task {
				filtered = append(filtered, record)
				break
			}
		}
	}
	return filtered, nil
}

func (s *store) EstimateModelRecordCount(ctx context.Context) (int64, error) {
	return s.estimateCount(ctx, "model_records")
}

func scanModelRecord(row libdb.QueryRower) (*ModelRecord, error) {
	var record ModelRecord
	var tasks []byte
	var metadata sql.Null[[]byte]
	err := row.Scan(
		&record.Key,
		&record.Provider,
		&record.ModelName,
		&tasks,
		&record.Enabled,
		&metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, libdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 {
		if err := json.Unmarshal(tasks, &record.Tasks); err != nil {
			return nil, fmt.Errorf("failed to decode task list: %w", err)
		}
	}
	if metadata.Valid {
		record.Metadata = metadata.V
	}
	return &record, nil
}

func collectModelRecords(rows *sql.Rows) ([]*ModelRecord, error) {
	defer rows.Close()

	records := []*ModelRecord{}
	for rows.Next() {
		record, err := scanModelRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
