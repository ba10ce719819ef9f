package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"portfolio.admin/internal/auth"
)

// Record is the persisted session.
type Record struct {
	Secret         string    `json:"secret,omitempty"`
	Token          string    `json:"token,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitzero"`
	IssuedAt       time.Time `json:"issued_at"`
	LastActivity   time.Time `json:"last_activity"`
}

func (r *Record) credentials() auth.Credentials {
	if r.Token != "" {
		return auth.Credentials{Token: r.Token}
	}
	return auth.Credentials{Secret: r.Secret}
}

// Storage holds at most one session. Load returns nil, nil when empty.
type Storage interface {
	Load() (*Record, error)
	Save(*Record) error
	Clear() error
}

// MemoryStorage lives as long as the process.
type MemoryStorage struct {
	mu  sync.Mutex
	rec *Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	cp := *s.rec
	return &cp, nil
}

func (s *MemoryStorage) Save(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rec = &cp
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

// FileStorage keeps a session across CLI invocations. It never writes the
// raw secret; a session without a server token is not persisted.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// DefaultPath is under the per-user runtime directory when available so
// the file does not outlive the login session.
func DefaultPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("portfolioctl-%d.json", os.Getuid()))
}

func (s *FileStorage) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &r, nil
}

func (s *FileStorage) Save(r *Record) error {
	if r.Token == "" {
		return s.Clear()
	}
	cp := *r
	cp.Secret = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
