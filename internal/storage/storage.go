// Package storage provides the key-value surfaces the session state lives in:
// a durable local scope and a per-terminal-session scope. Every operation may
// fail; Safe turns failures into an in-memory fallback.
package storage

import (
	"errors"
	"maps"
	"sync"
)

// ErrUnavailable is returned by stores whose medium cannot be used.
var ErrUnavailable = errors.New("storage unavailable")

// Store is a string key-value surface.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Snapshot returns a copy of the stored values.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	maps.Copy(out, m.values)
	return out
}

// Unavailable is a Store whose every operation fails. It stands in for a
// medium that could not be opened.
type Unavailable struct {
	Err error
}

func (u Unavailable) err() error {
	if u.Err != nil {
		return u.Err
	}
	return ErrUnavailable
}

// Get implements Store.
func (u Unavailable) Get(string) (string, bool, error) { return "", false, u.err() }

// Set implements Store.
func (u Unavailable) Set(string, string) error { return u.err() }

// Remove implements Store.
func (u Unavailable) Remove(string) error { return u.err() }
