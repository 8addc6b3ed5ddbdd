package tokenstore

import "sync"

// Memory is the default token store; tokens live for the process lifetime
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemory creates an in-memory token store
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]string)}
}

// Load implements TokenStore
func (m *Memory) Load(accountID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[accountID], nil
}

// Save implements TokenStore
func (m *Memory) Save(accountID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[accountID] = token
	return nil
}

// Delete implements TokenStore
func (m *Memory) Delete(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, accountID)
	return nil
}

// Close implements TokenStore
func (m *Memory) Close() error {
	return nil
}
