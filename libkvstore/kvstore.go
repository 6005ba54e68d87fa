// Package libkvstore provides a small key-value surface over Valkey. The task
// resolver uses it as the live override store: overrides written here win over
// static configuration on the next resolve.
package libkvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("libkvstore: key not found")
	ErrConnectionFailed = errors.New("libkvstore: connection failed")
)

// Config carries connection settings for the backing Valkey instance.
type Config struct {
	KVAddr     string
	KVPassword string
}

// KVExec is the operation surface handed out by a KVManager.
type KVExec interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// KVManager owns the client connection and hands out executors.
type KVManager interface {
	Executor(ctx context.Context) (KVExec, error)
	Close() error
}
