package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/knadh/koanf/v2"
)

// ChangeFunc is called after a path under the subscribed prefix changes.
// value is nil for deletions.
type ChangeFunc func(ctx context.Context, path string, value any)

type listener struct {
	id     string
	prefix string
	fn     ChangeFunc
}

// Store is the runtime configuration: dot-path access over the loaded
// layers plus change notification. The engine reads it; discovery writes
// resolved device addresses into it.
type Store struct {
	mu sync.RWMutex
	k  *koanf.Koanf

	lmu       sync.RWMutex
	listeners []listener
}

// NewStore wraps k. A nil k starts empty.
func NewStore(k *koanf.Koanf) *Store {
	if k == nil {
		k = koanf.New(".")
	}
	return &Store{k: k}
}

// Get returns the value at path, or nil.
func (s *Store) Get(path string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Get(path)
}

// String returns the value at path as a string, or "".
func (s *Store) String(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.String(path)
}

// Has reports whether path is set.
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Exists(path)
}

// Set writes value at path and notifies listeners when the value changed.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	s.mu.Lock()
	if reflect.DeepEqual(s.k.Get(path), value) {
		s.mu.Unlock()
		return nil
	}
	err := s.k.Set(path, value)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.notify(ctx, path, value)
	return nil
}

// Delete removes path and notifies listeners.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	if !s.k.Exists(path) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	s.k.Delete(path)
	s.mu.Unlock()
	s.notify(ctx, path, nil)
	return nil
}

// OnChange registers fn for changes at or below prefix. An empty prefix
// matches every path. Listeners run synchronously in registration order.
func (s *Store) OnChange(prefix string, fn ChangeFunc) string {
	id := uuid.NewString()
	s.lmu.Lock()
	s.listeners = append(s.listeners, listener{id: id, prefix: prefix, fn: fn})
	s.lmu.Unlock()
	return id
}

// Unsubscribe removes a listener. It reports whether id was registered.
func (s *Store) Unsubscribe(id string) bool {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) notify(ctx context.Context, path string, value any) {
	s.lmu.RLock()
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.RUnlock()

	for _, l := range ls {
		if matches(l.prefix, path) {
			l.fn(ctx, path, value)
		}
	}
}

// matches reports whether path is prefix or lies below it.
func matches(prefix, path string) bool {
	if prefix == "" || prefix == path {
		return true
	}
	return strings.HasPrefix(path, prefix+".")
}

// Config decodes the store over the defaults and validates the result.
func (s *Store) Config(ctx context.Context) (*Config, error) {
	cfg := New(ctx)
	s.mu.RLock()
	err := s.k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"})
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
