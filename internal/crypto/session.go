package crypto

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
)

// SealedFileStorage keeps the MTProto session on disk encrypted, since it
// grants full access to the logged-in account.
type SealedFileStorage struct {
	path string
	key  []byte
	mu   sync.Mutex
}

var _ session.Storage = (*SealedFileStorage)(nil)

func NewSealedFileStorage(path, secret string) (*SealedFileStorage, error) {
	key, err := DeriveKey(secret, "mtproto-session")
	if err != nil {
		return nil, err
	}
	return &SealedFileStorage{path: path, key: key}, nil
}

func (s *SealedFileStorage) LoadSession(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	plain, err := Open(data, s.key)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return plain, nil
}

func (s *SealedFileStorage) StoreSession(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := Seal(data, s.key)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}
