// Package storage persists AES-GMAC-SIV key pairs as msgpack records.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
)

const (
	keyFileVersion = 1
	keyFileExt     = ".key"
	tempExt        = ".out"
)

var ErrUnsupportedVersion = errors.New("unsupported key file version")

type keyRecord struct {
	Version int    `msgpack:"version"`
	K0      []byte `msgpack:"k0"`
	K1      []byte `msgpack:"k1"`
	Created int64  `msgpack:"created"`
}

// Manager stores named key pairs under one directory.
type Manager struct {
	basePath string
	mutex    sync.RWMutex
}

func NewManager(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}
	return &Manager{basePath: basePath}, nil
}

func (m *Manager) GetBasePath() string {
	return m.basePath
}

// Path resolves a key name. Absolute paths and names with an extension are
// used as given; bare names get the .key extension inside the base path.
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += keyFileExt
	}
	return filepath.Join(m.basePath, name)
}

func (m *Manager) SaveKeyPair(name string, keys cryptography.KeyPair) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	path := m.Path(name)
	if err := WriteKeyFile(path, keys); err != nil {
		return err
	}
	debug.Log(debug.DEBUG_VERBOSE, "Saved key pair to storage", "name", name, "path", path)
	return nil
}

func (m *Manager) LoadKeyPair(name string) (cryptography.KeyPair, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return ReadKeyFile(m.Path(name))
}

func (m *Manager) RemoveKeyPair(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return os.Remove(m.Path(name))
}

// ListKeyPairs returns the names of stored key pairs, sorted.
func (m *Manager) ListKeyPairs() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), keyFileExt))
	}
	sort.Strings(names)
	return names, nil
}

// WriteKeyFile writes keys to path through a temporary file and a rename,
// so readers never see a partial record.
func WriteKeyFile(path string, keys cryptography.KeyPair) error {
	if err := keys.Validate(); err != nil {
		return err
	}

	data, err := msgpack.Marshal(keyRecord{
		Version: keyFileVersion,
		K0:      keys.K0,
		K1:      keys.K1,
		Created: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	outPath := path + tempExt
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(outPath, path); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("failed to move key file: %w", err)
	}
	return nil
}

func ReadKeyFile(path string) (cryptography.KeyPair, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return cryptography.KeyPair{}, err
	}

	var rec keyRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return cryptography.KeyPair{}, fmt.Errorf("corrupted key file %s: %w", path, err)
	}
	if rec.Version != keyFileVersion {
		return cryptography.KeyPair{}, fmt.Errorf("%s: %w: %d", path, ErrUnsupportedVersion, rec.Version)
	}

	keys := cryptography.KeyPair{K0: rec.K0, K1: rec.K1}
	if err := keys.Validate(); err != nil {
		return cryptography.KeyPair{}, fmt.Errorf("%s: %w", path, err)
	}
	return keys, nil
}
