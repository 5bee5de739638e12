package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler is called with the freshly loaded config after a reload.
type ChangeHandler func(cfg *Config)

// Manager watches the config file and hot-reloads it on change. Reloads that
// fail to parse or validate keep the previous config in place.
type Manager struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Config
	handlers []ChangeHandler

	stopCh  chan struct{}
	started bool

	// Editors replace files instead of writing in place; debounce collapses
	// the resulting event bursts into one reload.
	debounce time.Duration
}

// NewManager loads the initial config and prepares the watcher.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Manager{
		path:     path,
		logger:   logger,
		watcher:  watcher,
		current:  cfg,
		stopCh:   make(chan struct{}),
		debounce: 200 * time.Millisecond,
	}, nil
}

// Config returns the current configuration.
func (m *Manager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a handler invoked after every successful reload.
func (m *Manager) OnChange(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Start begins watching the config file's directory. Watching the directory
// rather than the file survives rename-replace writes.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	dir := filepath.Dir(m.path)
	if err := m.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go m.watchLoop()

	m.logger.Info("Config manager started", zap.String("path", m.path))
	return nil
}

// Stop shuts the watcher down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	close(m.stopCh)
	return m.watcher.Close()
}

func (m *Manager) watchLoop() {
	var pending <-chan time.Time
	for {
		select {
		case <-m.stopCh:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(m.debounce)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Config watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			m.reload()
		}
	}
}

func (m *Manager) reload() {
	cfg, err := LoadFile(m.path)
	if err != nil {
		m.logger.Error("Config reload failed, keeping previous config",
			zap.String("path", m.path),
			zap.Error(err),
		)
		return
	}

	m.mu.Lock()
	m.current = cfg
	handlers := append([]ChangeHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Config reloaded", zap.String("path", m.path))
	for _, h := range handlers {
		h(cfg)
	}
}
