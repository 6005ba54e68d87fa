package libkvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

type valkeyManager struct {
	client valkey.Client
}

// NewManager connects to Valkey and verifies the connection within timeout.
func NewManager(cfg Config, timeout time.Duration) (KVManager, error) {
	if cfg.KVAddr == "" {
		return nil, fmt.Errorf("%w: KVAddr is required", ErrConnectionFailed)
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.KVAddr},
		Password:    cfg.KVPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}

	return &valkeyManager{client: client}, nil
}

func (m *valkeyManager) Executor(ctx context.Context) (KVExec, error) {
	if m.client == nil {
		return nil, ErrConnectionFailed
	}
	return &valkeyExec{client: m.client}, nil
}

func (m *valkeyManager) Close() error {
	if m.client != nil {
		m.client.Close()
	}
	return nil
}

type valkeyExec struct {
	client valkey.Client
}

func (e *valkeyExec) Get(ctx context.Context, key string) (json.RawMessage, error) {
	resp := e.client.Do(ctx, e.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("libkvstore: get %q: %w", key, err)
	}
	b, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("libkvstore: get %q: %w", key, err)
	}
	return json.RawMessage(b), nil
}

func (e *valkeyExec) Set(ctx context.Context, key string, value json.RawMessage) error {
	err := e.client.Do(ctx, e.client.B().Set().Key(key).Value(string(value)).Build()).Error()
	if err != nil {
		return fmt.Errorf("libkvstore: set %q: %w", key, err)
	}
	return nil
}

func (e *valkeyExec) SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	err := e.client.Do(ctx, e.client.B().Set().Key(key).Value(string(value)).Px(ttl).Build()).Error()
	if err != nil {
		return fmt.Errorf("libkvstore: set %q with ttl: %w", key, err)
	}
	return nil
}

func (e *valkeyExec) Delete(ctx context.Context, key string) error {
	err := e.client.Do(ctx, e.client.B().Del().Key(key).Build()).Error()
	if err != nil {
		return fmt.Errorf("libkvstore: delete %q: %w", key, err)
	}
	return nil
}

func (e *valkeyExec) Exists(ctx context.Context, key string) (bool, error) {
	n, err := e.client.Do(ctx, e.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("libkvstore: exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (e *valkeyExec) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		resp := e.client.Do(ctx, e.client.B().Scan().Cursor(cursor).Match(prefix+"*").Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("libkvstore: scan %q: %w", prefix, err)
		}
		keys = append(keys, entry.Elements...)
		if entry.Cursor == 0 {
			break
		}
		cursor = entry.Cursor
	}
	return keys, nil
}
