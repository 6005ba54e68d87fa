package libroutine

import (
	"context"
	"sync"
	"time"
)

// Group manages named breaker-guarded loops. Each key gets at most one
// running loop; duplicate StartLoop calls for the same key are ignored.
type Group struct {
	mu       sync.Mutex
	managers map[string]*Routine
	active   map[string]bool
	triggers map[string]chan struct{}
}

var (
	groupInstance *Group
	groupOnce     sync.Once
)

// GetGroup returns the process-wide loop group.
func GetGroup() *Group {
	groupOnce.Do(func() {
		groupInstance = &Group{
			managers: make(map[string]*Routine),
			active:   make(map[string]bool),
			triggers: make(map[string]chan struct{}),
		}
	})
	return groupInstance
}

// LoopConfig describes one managed loop.
type LoopConfig struct {
	Key          string
	Threshold    int
	ResetTimeout time.Duration
	Interval     time.Duration
	Operation    func(ctx context.Context) error
	OnError      func(error)
}

// StartLoop starts a managed loop for the config's key, unless one is
// already active. The loop stops and deregisters when ctx is done.
func (g *Group) StartLoop(ctx context.Context, cfg *LoopConfig) {
	g.mu.Lock()
	if g.active[cfg.Key] {
		g.mu.Unlock()
		return
	}
	manager, ok := g.managers[cfg.Key]
	if !ok {
		manager = NewRoutine(cfg.Threshold, cfg.ResetTimeout)
		g.managers[cfg.Key] = manager
	}
	trigger := make(chan struct{}, 1)
	g.triggers[cfg.Key] = trigger
	g.active[cfg.Key] = true
	g.mu.Unlock()

	onError := cfg.OnError
	if onError == nil {
		onError = func(error) {}
	}

	go func() {
		defer func() {
			g.mu.Lock()
			delete(g.active, cfg.Key)
			delete(g.triggers, cfg.Key)
			g.mu.Unlock()
		}()
		manager.Loop(ctx, cfg.Interval, trigger, cfg.Operation, onError)
	}()
}

// ForceUpdate triggers an immediate run of the loop for key, if active.
func (g *Group) ForceUpdate(key string) {
	g.mu.Lock()
	trigger := g.triggers[key]
	g.mu.Unlock()
	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// IsLoopActive reports whether a loop is currently running for key.
func (g *Group) IsLoopActive(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[key]
}

// GetManager returns the breaker for key, creating it if needed.
func (g *Group) GetManager(key string) *Routine {
	g.mu.Lock()
	defer g.mu.Unlock()
	manager, ok := g.managers[key]
	if !ok {
		manager = NewRoutine(1, time.Second)
		g.managers[key] = manager
	}
	return manager
}
