package cryptography

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"

	"golang.org/x/sys/cpu"
)

const (
	// AES key sizes in bytes
	AES128KeySize = 16 // 128 bits
	AES192KeySize = 24 // 192 bits
	AES256KeySize = 32 // 256 bits

	// Default to AES-256
	DefaultKeySize = AES256KeySize
)

// ErrInvalidKeySize is returned for keys that are not 16, 24 or 32 bytes.
var ErrInvalidKeySize = errors.New("invalid key size: must be 16, 24, or 32 bytes")

// GenerateAESKey generates a random AES key of the specified size
func GenerateAESKey(keySize int) ([]byte, error) {
	if !validKeySize(keySize) {
		return nil, ErrInvalidKeySize
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateAES256Key generates a random AES-256 key (default)
func GenerateAES256Key() ([]byte, error) {
	return GenerateAESKey(AES256KeySize)
}

// NewBlock returns the single-block AES encryptor for key. Both halves of
// AES-GMAC-SIV are built on top of it.
func NewBlock(key []byte) (cipher.Block, error) {
	if !validKeySize(len(key)) {
		return nil, ErrInvalidKeySize
	}
	return aes.NewCipher(key)
}

// HardwareAES reports whether crypto/aes runs on AES instructions here.
// Without them the block cipher falls back to a table implementation that
// is not constant time.
func HardwareAES() bool {
	return runtime.GOOS == "darwin" || cpu.X86.HasAES || cpu.ARM64.HasAES || cpu.S390X.HasAES
}

func validKeySize(n int) bool {
	return n == AES128KeySize || n == AES192KeySize || n == AES256KeySize
}
