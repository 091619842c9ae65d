package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/iudanet/trackmail/internal/crypto"
)

const (
	// KeySize is the length of a generated signing key in bytes
	KeySize = 64
	// MinKeySize is the shortest key accepted from an existing key file
	MinKeySize = 32
)

// KeyLoader loads the signing key exactly once per process.
type KeyLoader struct {
	err  error
	path string
	key  []byte
	once sync.Once
}

// NewKeyLoader creates a loader for the key file at path
func NewKeyLoader(path string) *KeyLoader {
	return &KeyLoader{path: path}
}

// Key returns the signing key, loading or generating it on first call.
// Later calls return the same key (or the same error).
func (l *KeyLoader) Key() ([]byte, error) {
	l.once.Do(func() {
		l.key, l.err = LoadOrCreateKey(l.path)
	})
	return l.key, l.err
}

// LoadOrCreateKey reads a base64 encoded key from path. If the file does not
// exist a new random key is generated and persisted with 0600 permissions.
// Replacing the key invalidates every outstanding access and refresh token.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode key file %s: %w", path, err)
		}
		if len(key) < MinKeySize {
			return nil, fmt.Errorf("key file %s: key too short (%d bytes)", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := crypto.RandomBytes(KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist signing key: %w", err)
	}

	return key, nil
}
