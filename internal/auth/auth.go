// Package auth stores the tasknet session credentials: the API token
// and the tenant code of the workspace, persisted in the user config
// directory.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotAuthenticated is returned when no stored session exists.
var ErrNotAuthenticated = errors.New("not signed in")

const credentialsFile = "credentials.json"

// Credentials is the persisted session state.
type Credentials struct {
	Token      string `json:"token"`
	Username   string `json:"username"`
	TenantCode string `json:"tenant_code"`
	CreatedAt  int64  `json:"created_at"`
}

// Manager handles credential persistence.
type Manager struct {
	configDir   string
	mu          sync.RWMutex
	credentials *Credentials
}

// NewManager creates an auth manager rooted at ~/.config/tasknet and
// loads any existing credentials.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(homeDir, ".config", "tasknet"))
}

// NewManagerAt creates an auth manager rooted at an explicit directory.
func NewManagerAt(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configDir: configDir}
	_ = m.load()
	return m, nil
}

// IsAuthenticated reports whether a session is stored.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials != nil && m.credentials.Token != ""
}

// Credentials returns the stored session, or ErrNotAuthenticated.
func (m *Manager) Credentials() (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.credentials == nil || m.credentials.Token == "" {
		return nil, ErrNotAuthenticated
	}
	creds := *m.credentials
	return &creds, nil
}

// Save persists a new session.
func (m *Manager) Save(token, username, tenantCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials = &Credentials{
		Token:      token,
		Username:   username,
		TenantCode: tenantCode,
		CreatedAt:  time.Now().Unix(),
	}

	data, err := json.MarshalIndent(m.credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	path := filepath.Join(m.configDir, credentialsFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials = nil
	path := filepath.Join(m.configDir, credentialsFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	path := filepath.Join(m.configDir, credentialsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()
	return nil
}
