package cryptography

import (
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyPair holds the two AES-GMAC-SIV keys. K0 keys GMAC, K1 keys CTR and
// the tag wrap.
type KeyPair struct {
	K0 []byte `msgpack:"k0"`
	K1 []byte `msgpack:"k1"`
}

// Validate checks both key sizes.
func (k KeyPair) Validate() error {
	if !validKeySize(len(k.K0)) {
		return fmt.Errorf("k0: %w", ErrInvalidKeySize)
	}
	if !validKeySize(len(k.K1)) {
		return fmt.Errorf("k1: %w", ErrInvalidKeySize)
	}
	return nil
}

// GenerateKeyPair returns a random pair of AES-256 keys.
func GenerateKeyPair() (KeyPair, error) {
	k0, err := GenerateAES256Key()
	if err != nil {
		return KeyPair{}, err
	}
	k1, err := GenerateAES256Key()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{K0: k0, K1: k1}, nil
}

// DeriveKey expands secret into length bytes with HKDF-SHA-384.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hkdfReader := hkdf.New(sha512.New384, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKeyPair derives K0 and K1 from one shared secret. The two keys are
// consecutive halves of a single HKDF output and are independent.
func DeriveKeyPair(secret, salt, info []byte) (KeyPair, error) {
	okm, err := DeriveKey(secret, salt, info, 2*DefaultKeySize)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive key pair: %w", err)
	}
	return KeyPair{K0: okm[:DefaultKeySize], K1: okm[DefaultKeySize:]}, nil
}
