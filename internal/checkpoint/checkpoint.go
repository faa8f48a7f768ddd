// Package checkpoint persists the window of recently emitted message IDs per
// trigger, so a restart or an overlapping read does not emit a message twice.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// DefaultWindow is the number of message IDs remembered per trigger.
const DefaultWindow = 1000

// State is the prior-state carried between poll cycles: the most recently
// emitted message IDs, oldest first.
type State struct {
	Seen []string `json:"seen"`
}

// Contains reports whether id was emitted in a previous cycle.
func (s State) Contains(id string) bool {
	for _, seen := range s.Seen {
		if seen == id {
			return true
		}
	}
	return false
}

// With returns a new State with ids appended, keeping at most capacity
// entries. The receiver is not modified.
func (s State) With(ids []string, capacity int) State {
	if capacity <= 0 || len(ids) == 0 {
		return s
	}
	next := make([]string, 0, len(s.Seen)+len(ids))
	next = append(next, s.Seen...)
	next = append(next, ids...)
	if len(next) > capacity {
		next = next[len(next)-capacity:]
	}
	return State{Seen: next}
}

// Store loads and saves State keyed by trigger name.
type Store interface {
	Load(ctx context.Context, trigger string) (State, error)
	Save(ctx context.Context, trigger string, state State) error
	Close() error
}

// Options configures New.
type Options struct {
	Driver      string
	Path        string
	RedisAddr   string
	RedisPrefix string
}

// New opens the store named by opts.Driver.
func New(opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "none":
		return Nop{}, nil
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	case "redis":
		return NewRedisStore(opts.RedisAddr, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", opts.Driver)
	}
}

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(_ context.Context, trigger string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[trigger]
	return State{Seen: append([]string(nil), s.Seen...)}, nil
}

func (m *MemoryStore) Save(_ context.Context, trigger string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[trigger] = State{Seen: append([]string(nil), state.Seen...)}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Nop never remembers anything; dedup then relies on the gateway's
// mark-as-read alone.
type Nop struct{}

func (Nop) Load(context.Context, string) (State, error) { return State{}, nil }
func (Nop) Save(context.Context, string, State) error { return nil }
func (Nop) Close() error { return nil }
