package settings

import "sync"

type memStore struct {
	mu       sync.RWMutex
	token    string
	settings *Settings
}

// NewMemory returns a Store that lives as long as the process.
func NewMemory() Store { return &memStore{} }

func (m *memStore) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *memStore) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *memStore) ClearToken() error { return m.SetToken("") }

func (m *memStore) Settings() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return Settings{}, ErrNoSettings
	}
	return *m.settings, nil
}

func (m *memStore) SaveSettings(s Settings) error {
	m.mu.Lock()
	m.settings = &s
	m.mu.Unlock()
	return nil
}

func (m *memStore) Close() error { return nil }
