// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompts loads the system prompt templates the agents send to the
// model API. Embedded defaults ship with the binary; an optional directory
// overrides them and is hot-reloaded on change.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

//go:embed templates/*.txt
var embedded embed.FS

// Manager serves prompt templates by name (market, tech, risk,
// user_feedback). Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	overrides map[string]string
	dir       string
	logger    *zap.Logger
}

// NewManager returns a Manager serving the embedded templates, with
// optional overrides from dir. A missing dir is not an error; the embedded
// defaults apply.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		overrides: make(map[string]string),
		dir:       dir,
		logger:    logger,
	}
	if dir != "" {
		if err := m.loadOverrides(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns the template text for name. Overrides win over embedded
// defaults.
func (m *Manager) Get(name string) (string, error) {
	m.mu.RLock()
	if text, ok := m.overrides[name]; ok {
		m.mu.RUnlock()
		return text, nil
	}
	m.mu.RUnlock()

	data, err := embedded.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q: %w", name, err)
	}
	return string(data), nil
}

// Watch reloads overrides when files in the prompts directory change.
// It blocks until stop is closed; callers run it in a goroutine. A no-op
// when no override directory is configured.
func (m *Manager) Watch(stop <-chan struct{}) error {
	if m.dir == "" {
		<-stop
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("watching %s: %w", m.dir, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if err := m.loadOverrides(); err != nil {
				m.logger.Warn("prompt reload failed", zap.Error(err))
				continue
			}
			m.logger.Info("prompts reloaded", zap.String("trigger", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) loadOverrides() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading prompts directory %s: %w", m.dir, err)
	}

	overrides := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			m.logger.Warn("skipping unreadable prompt", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		overrides[name] = string(data)
	}

	m.mu.Lock()
	m.overrides = overrides
	m.mu.Unlock()
	return nil
}
