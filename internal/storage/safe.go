package storage

import (
	"sync"
	"sync/atomic"

	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
)

// Safe wraps a Store so that no operation ever fails. Writes of this run are
// mirrored in memory and take precedence on reads; the backing store only
// supplies values from earlier runs. When the backing store errors the
// program keeps same-run correctness and loses durability.
type Safe struct {
	primary  Store
	fallback *Memory
	removed  sync.Map
	name     string
	degraded atomic.Bool
}

// NewSafe wraps primary. name identifies the surface in logs.
func NewSafe(name string, primary Store) *Safe {
	return &Safe{name: name, primary: primary, fallback: NewMemory()}
}

// Get returns the value for key, or "" and false.
func (s *Safe) Get(key string) (string, bool) {
	if v, ok, _ := s.fallback.Get(key); ok {
		return v, true
	}
	if _, gone := s.removed.Load(key); gone {
		return "", false
	}
	v, ok, err := s.primary.Get(key)
	if err != nil {
		s.fail("get", key, err)
		return "", false
	}
	return v, ok
}

// Set stores value under key.
func (s *Safe) Set(key, value string) {
	_ = s.fallback.Set(key, value)
	s.removed.Delete(key)
	if err := s.primary.Set(key, value); err != nil {
		s.fail("set", key, err)
	}
}

// Remove deletes key.
func (s *Safe) Remove(key string) {
	_ = s.fallback.Remove(key)
	s.removed.Store(key, struct{}{})
	if err := s.primary.Remove(key); err != nil {
		s.fail("remove", key, err)
	}
}

// Degraded reports whether the backing store has failed at least once.
func (s *Safe) Degraded() bool {
	return s.degraded.Load()
}

func (s *Safe) fail(op, key string, err error) {
	if !s.degraded.Swap(true) {
		logger.Warn("storage degraded to memory", "surface", s.name, "op", op, "key", key, "error", err)
		return
	}
	logger.Debug("storage operation failed", "surface", s.name, "op", op, "key", key, "error", err)
}
