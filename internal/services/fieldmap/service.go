// Package fieldmap keeps the field alias table in sync with its file on disk.
package fieldmap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Event represents a field map service event.
type Event struct {
	Error error
	Type  EventType
}

// EventType defines the type of field map event.
type EventType int

const (
	EventLoaded EventType = iota
	EventChanged
	EventError
)

const debounceInterval = 100 * time.Millisecond

// Service holds the current field map and reloads it when the file changes.
// A broken file keeps the previous table in place.
type Service struct {
	mu            sync.RWMutex
	current       models.FieldMap
	filePath      string
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	closeOnce     sync.Once
}

// New loads the field map at filePath, writing the defaults there first when
// the file does not exist, and starts watching it.
func New(filePath string) (*Service, error) {
	s := &Service{
		current:   config.DefaultFieldMap(),
		filePath:  filePath,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if filePath == "" {
		s.sendEvent(Event{Type: EventLoaded})
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load field map: %w", err)
		}
		if err := s.writeDefaults(); err != nil {
			return nil, fmt.Errorf("failed to create field map file: %w", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded})
	return s, nil
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Path returns the watched file.
func (s *Service) Path() string { return s.filePath }

// Current returns a copy of the active field map.
func (s *Service) Current() models.FieldMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.FieldMap, len(s.current))
	for field, keys := range s.current {
		out[field] = append([]string(nil), keys...)
	}
	return out
}

func (s *Service) load() error {
	m, err := config.LoadFieldMap(s.filePath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
	return nil
}

func (s *Service) writeDefaults() error {
	data, err := config.MarshalFieldMap(config.DefaultFieldMap())
	if err != nil {
		return err
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Service) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) handleFileChange() {
	if err := s.load(); err != nil {
		logger.Warn("field map reload failed, keeping previous map", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}
	logger.Info("field map reloaded", "path", s.filePath)
	s.sendEvent(Event{Type: EventChanged})
}

// sendEvent never blocks; a full channel drops its oldest event.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
