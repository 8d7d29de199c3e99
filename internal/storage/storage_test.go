package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)
	return m
}

func TestSaveLoadKeyPair(t *testing.T) {
	m := newManager(t)
	keys, err := cryptography.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, m.SaveKeyPair("0102030405", keys))

	path := filepath.Join(m.GetBasePath(), "0102030405.key")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".out")
	assert.True(t, os.IsNotExist(err), "temporary file left behind")

	loaded, err := m.LoadKeyPair("0102030405")
	require.NoError(t, err)
	assert.Equal(t, keys, loaded)

	names, err := m.ListKeyPairs()
	require.NoError(t, err)
	assert.Equal(t, []string{"0102030405"}, names)

	require.NoError(t, m.RemoveKeyPair("0102030405"))
	names, err = m.ListKeyPairs()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSaveOverwrites(t *testing.T) {
	m := newManager(t)
	first, _ := cryptography.GenerateKeyPair()
	second, _ := cryptography.GenerateKeyPair()

	require.NoError(t, m.SaveKeyPair("peer", first))
	require.NoError(t, m.SaveKeyPair("peer", second))

	loaded, err := m.LoadKeyPair("peer")
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestPathResolution(t *testing.T) {
	m := newManager(t)
	assert.Equal(t, filepath.Join(m.GetBasePath(), "a.key"), m.Path("a"))
	assert.Equal(t, filepath.Join(m.GetBasePath(), "a.bin"), m.Path("a.bin"))
	abs := filepath.Join(t.TempDir(), "elsewhere.key")
	assert.Equal(t, abs, m.Path(abs))
}

func TestWriteKeyFileRejectsInvalidKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	err := WriteKeyFile(path, cryptography.KeyPair{K0: make([]byte, 7), K1: make([]byte, 32)})
	assert.ErrorIs(t, err, cryptography.ErrInvalidKeySize)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadKeyFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadKeyFile(filepath.Join(dir, "missing.key"))
	assert.True(t, os.IsNotExist(err))

	garbage := filepath.Join(dir, "garbage.key")
	require.NoError(t, os.WriteFile(garbage, []byte{0xc1}, 0600))
	_, err = ReadKeyFile(garbage)
	assert.ErrorContains(t, err, "corrupted key file")

	future := filepath.Join(dir, "future.key")
	data, err := msgpack.Marshal(keyRecord{Version: 9, K0: make([]byte, 32), K1: make([]byte, 32)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(future, data, 0600))
	_, err = ReadKeyFile(future)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	short := filepath.Join(dir, "short.key")
	data, err = msgpack.Marshal(keyRecord{Version: keyFileVersion, K0: make([]byte, 32), K1: make([]byte, 3)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(short, data, 0600))
	_, err = ReadKeyFile(short)
	assert.ErrorIs(t, err, cryptography.ErrInvalidKeySize)
}
