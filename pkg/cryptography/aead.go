package cryptography

import (
	"crypto/cipher"
	"strconv"

	"github.com/ericlagergren/subtle"
)

type aead struct {
	pool *SessionPool
}

var _ cipher.AEAD = (*aead)(nil)

// NewAEAD returns AES-GMAC-SIV as a cipher.AEAD. The nonce is the 8-byte
// IV and the tag is appended to the ciphertext. The returned value is safe
// for concurrent use.
func NewAEAD(k0, k1 []byte) (cipher.AEAD, error) {
	pool, err := NewSessionPool(KeyPair{K0: k0, K1: k1})
	if err != nil {
		return nil, err
	}
	return &aead{pool: pool}, nil
}

func (a *aead) NonceSize() int {
	return IVSize
}

func (a *aead) Overhead() int {
	return TagSize
}

func (a *aead) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != IVSize {
		panic("aesgmacsiv: invalid nonce length: " + strconv.Itoa(len(nonce)))
	}

	ret, out := subtle.SliceForAppend(dst, len(plaintext)+TagSize)
	if subtle.InexactOverlap(out, plaintext) {
		panic("aesgmacsiv: invalid buffer overlap")
	}

	s := a.pool.Get()
	defer a.pool.Put(s)

	s.EncryptInit(nonce)
	s.EncryptSetAAD(additionalData)
	s.EncryptFirstPass(plaintext)
	s.EncryptFirstPassFinish()
	s.EncryptSecondPass(plaintext, out)
	tag := s.EncryptSecondPassFinish()
	copy(out[len(plaintext):], tag[:])
	return ret
}

func (a *aead) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != IVSize {
		panic("aesgmacsiv: invalid nonce length: " + strconv.Itoa(len(nonce)))
	}
	if len(ciphertext) < TagSize {
		return nil, ErrAuthenticationFailed
	}

	var tag [TagSize]byte
	copy(tag[:], ciphertext[len(ciphertext)-TagSize:])
	ciphertext = ciphertext[:len(ciphertext)-TagSize]

	ret, out := subtle.SliceForAppend(dst, len(ciphertext))
	if subtle.InexactOverlap(out, ciphertext) {
		panic("aesgmacsiv: invalid buffer overlap")
	}

	s := a.pool.Get()
	defer a.pool.Put(s)

	s.DecryptInit(tag)
	s.DecryptSetAAD(additionalData)
	s.Decrypt(ciphertext, out)
	err := s.DecryptFinish()
	// The tag binds the IV, so a wrong nonce would otherwise go unnoticed.
	if err == nil && subtle.ConstantTimeCompare(s.opened[:IVSize], nonce) != 1 {
		err = ErrAuthenticationFailed
	}
	if err != nil {
		clear(out)
		return nil, err
	}
	return ret, nil
}
