package workflow

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager fronts an Engine with lazy startup and per-tool definition
// sync. Concurrent first invokes share one startup attempt; after a
// failure the next invoke retries.
type Manager struct {
	engine Engine

	startGroup singleflight.Group
	syncGroup  singleflight.Group

	mu         sync.RWMutex
	started    bool
	internalID map[string]string // tool name -> engine-internal id
}

// NewManager wraps the engine.
func NewManager(engine Engine) *Manager {
	return &Manager{
		engine:     engine,
		internalID: make(map[string]string),
	}
}

// Execute runs the workflow registered under toolName, starting the
// engine and importing the definition on first use.
func (m *Manager) Execute(ctx context.Context, toolName string, def *Definition, input map[string]any) (map[string]any, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, fmt.Errorf("start workflow engine: %w", err)
	}
	internalID, err := m.ensureImported(ctx, toolName, def)
	if err != nil {
		return nil, fmt.Errorf("import workflow for %s: %w", toolName, err)
	}
	return m.engine.Execute(ctx, internalID, input)
}

// Sync imports or updates the definition for toolName without executing
// it. Discovery calls this after a re-scan.
func (m *Manager) Sync(ctx context.Context, toolName string, def *Definition) error {
	if err := m.ensureStarted(ctx); err != nil {
		return err
	}
	internalID, err := m.engine.Import(ctx, def)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.internalID[toolName] = internalID
	m.mu.Unlock()
	return nil
}

// Forget drops the cached internal id for toolName so the next execute
// re-imports. The definition stays in the engine.
func (m *Manager) Forget(toolName string) {
	m.mu.Lock()
	delete(m.internalID, toolName)
	m.mu.Unlock()
}

// Shutdown stops the engine if it was started.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.internalID = make(map[string]string)
	m.mu.Unlock()
	if !started {
		return nil
	}
	return m.engine.Stop(ctx)
}

func (m *Manager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		return nil
	}

	_, err, _ := m.startGroup.Do("start", func() (any, error) {
		m.mu.RLock()
		already := m.started
		m.mu.RUnlock()
		if already {
			return nil, nil
		}
		if err := m.engine.Start(ctx); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		return nil, nil
	})
	return err
}

func (m *Manager) ensureImported(ctx context.Context, toolName string, def *Definition) (string, error) {
	m.mu.RLock()
	internalID, ok := m.internalID[toolName]
	m.mu.RUnlock()
	if ok {
		return internalID, nil
	}

	v, err, _ := m.syncGroup.Do(toolName, func() (any, error) {
		m.mu.RLock()
		cached, ok := m.internalID[toolName]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}
		id, err := m.engine.Import(ctx, def)
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		m.internalID[toolName] = id
		m.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
