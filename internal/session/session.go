// Package session caches the wallet session across process restarts. The
// cache is advisory only: live signer state always wins over what was
// persisted, via Reconcile.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Session is the persisted slice of user state.
type Session struct {
	WalletAddress string    `json:"walletAddress"`
	ProfileName   string    `json:"profileName,omitempty"`
	LastService   string    `json:"lastService,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store is a process-wide file-backed session cache with explicit
// load-on-start and clear-on-logout.
type Store struct {
	path    string
	mu      sync.Mutex
	current Session
}

// Open loads any persisted session from disk. A missing file is an empty
// session, not an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &s.current); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	s.current = sess
	return s.persist()
}

// Clear wipes the session on logout, in memory and on disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Reconcile resolves the cached session against the live wallet address.
// The live address wins; a mismatch replaces the cached session.
func (s *Store) Reconcile(liveAddress string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if liveAddress == "" {
		return s.current
	}
	if !strings.EqualFold(s.current.WalletAddress, liveAddress) {
		s.current = Session{WalletAddress: liveAddress, UpdatedAt: time.Now()}
		_ = s.persist()
	}
	return s.current
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, blob, 0o600)
}
