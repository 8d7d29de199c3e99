package cryptography

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrAuthenticationFailed is returned by DecryptFinish when the recomputed
// tag does not match. The decrypted bytes must be discarded.
var ErrAuthenticationFailed = errors.New("aesgmacsiv: message authentication failed")

type phase uint8

const (
	phaseIdle phase = iota
	phaseEncryptInit
	phaseEncryptAAD
	phaseEncryptFirstPass
	phaseEncryptSecondPass
	phaseEncryptDone
	phaseDecryptInit
	phaseDecryptAAD
	phaseDecrypting
	phaseDecryptDone
)

var phaseNames = [...]string{
	phaseIdle:              "idle",
	phaseEncryptInit:       "encrypt-init",
	phaseEncryptAAD:        "encrypt-aad",
	phaseEncryptFirstPass:  "encrypt-first-pass",
	phaseEncryptSecondPass: "encrypt-second-pass",
	phaseEncryptDone:       "encrypt-done",
	phaseDecryptInit:       "decrypt-init",
	phaseDecryptAAD:        "decrypt-aad",
	phaseDecrypting:        "decrypting",
	phaseDecryptDone:       "decrypt-done",
}

func (p phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// AesGmacSiv is one AES-GMAC-SIV encryptor/decryptor.
//
// Encryption takes two passes over the same plaintext. The first pass feeds
// GMAC (keyed by K0); its output, folded to 64 bits and concatenated with
// the 64-bit IV, is encrypted with K1 to form the tag. The tag then seeds
// AES-CTR (also K1) for the second pass. Decryption runs CTR from the
// received tag and re-authenticates the plaintext as it is produced.
//
// A session holds expanded keys and is meant to be reused through Reset. It
// must not be used from more than one goroutine at a time. Calling an
// operation out of order panics.
type AesGmacSiv struct {
	k1  cipher.Block
	mac *gmac
	ctr cipher.Stream

	phase phase
	tag   [TagSize]byte
	// On decrypt: AES_K1^-1(tag), i.e. IV ‖ expected folded MAC.
	opened [TagSize]byte

	firstPass  uint64
	secondPass uint64
}

// NewAesGmacSiv creates a session for the key pair (k0, k1). Each key must
// be a valid AES key size.
func NewAesGmacSiv(k0, k1 []byte) (*AesGmacSiv, error) {
	b0, err := NewBlock(k0)
	if err != nil {
		return nil, fmt.Errorf("k0: %w", err)
	}
	b1, err := NewBlock(k1)
	if err != nil {
		return nil, fmt.Errorf("k1: %w", err)
	}
	return &AesGmacSiv{k1: b1, mac: newGMAC(b0)}, nil
}

// Reset discards any in-flight state and returns the session to idle.
func (s *AesGmacSiv) Reset() {
	s.phase = phaseIdle
	s.ctr = nil
	clear(s.tag[:])
	clear(s.opened[:])
	s.firstPass = 0
	s.secondPass = 0
}

func (s *AesGmacSiv) require(op string, allowed uint16) {
	if allowed&(1<<s.phase) == 0 {
		panic(fmt.Sprintf("aesgmacsiv: %s called in phase %s", op, s.phase))
	}
}

// EncryptInit starts an encryption. The IV may be any length; it is folded
// into 8 bytes, so IVs of 8 bytes or less are used as-is. The folded IV is
// part of the tag, so output is deterministic only for a given IV: the same
// plaintext and AAD under a different IV yield a different tag and
// ciphertext.
func (s *AesGmacSiv) EncryptInit(iv []byte) {
	s.require("EncryptInit", 1<<phaseIdle)

	var nonce [gmacNonceSize]byte
	for i, b := range iv {
		nonce[i%IVSize] ^= b
	}
	copy(s.tag[:IVSize], nonce[:IVSize])
	s.mac.init(&nonce)
	s.phase = phaseEncryptInit
}

// EncryptSetAAD authenticates associated data. At most once, before the
// first pass.
func (s *AesGmacSiv) EncryptSetAAD(aad []byte) {
	s.require("EncryptSetAAD", 1<<phaseEncryptInit)
	s.mac.aad(aad)
	s.phase = phaseEncryptAAD
}

// EncryptFirstPass absorbs a chunk of plaintext into the MAC. It may be
// called any number of times.
func (s *AesGmacSiv) EncryptFirstPass(plaintext []byte) {
	s.require("EncryptFirstPass", 1<<phaseEncryptInit|1<<phaseEncryptAAD|1<<phaseEncryptFirstPass)
	s.mac.update(plaintext)
	s.firstPass += uint64(len(plaintext))
	s.phase = phaseEncryptFirstPass
}

// EncryptFirstPassFinish computes the tag and keys the CTR stream with it.
func (s *AesGmacSiv) EncryptFirstPassFinish() {
	s.require("EncryptFirstPassFinish", 1<<phaseEncryptInit|1<<phaseEncryptAAD|1<<phaseEncryptFirstPass)

	var g [BlockSize]byte
	s.mac.finish(&g)
	for i := 0; i < 8; i++ {
		s.tag[IVSize+i] = g[i] ^ g[8+i]
	}
	s.k1.Encrypt(s.tag[:], s.tag[:])
	s.ctr = s.newCTR(&s.tag)
	s.phase = phaseEncryptSecondPass
}

// EncryptSecondPass encrypts plaintext into ciphertext. The plaintext must
// be the same bytes, in the same order, that went through the first pass.
func (s *AesGmacSiv) EncryptSecondPass(plaintext, ciphertext []byte) {
	s.require("EncryptSecondPass", 1<<phaseEncryptSecondPass)
	if len(ciphertext) < len(plaintext) {
		panic("aesgmacsiv: ciphertext buffer shorter than plaintext")
	}
	s.countSecondPass(len(plaintext))
	s.ctr.XORKeyStream(ciphertext[:len(plaintext)], plaintext)
}

// EncryptSecondPassInPlace encrypts buf in place.
func (s *AesGmacSiv) EncryptSecondPassInPlace(buf []byte) {
	s.require("EncryptSecondPassInPlace", 1<<phaseEncryptSecondPass)
	s.countSecondPass(len(buf))
	s.ctr.XORKeyStream(buf, buf)
}

func (s *AesGmacSiv) countSecondPass(n int) {
	s.secondPass += uint64(n)
	if s.secondPass > s.firstPass {
		panic(fmt.Sprintf("aesgmacsiv: second pass covered %d bytes, first pass only %d", s.secondPass, s.firstPass))
	}
}

// EncryptSecondPassFinish returns the tag. Both passes must have covered
// the same number of bytes.
func (s *AesGmacSiv) EncryptSecondPassFinish() [TagSize]byte {
	s.require("EncryptSecondPassFinish", 1<<phaseEncryptSecondPass)
	if s.secondPass != s.firstPass {
		panic(fmt.Sprintf("aesgmacsiv: second pass covered %d bytes, first pass %d", s.secondPass, s.firstPass))
	}
	s.phase = phaseEncryptDone
	return s.tag
}

// DecryptInit starts a decryption from a received tag.
func (s *AesGmacSiv) DecryptInit(tag [TagSize]byte) {
	s.require("DecryptInit", 1<<phaseIdle)

	s.tag = tag
	s.ctr = s.newCTR(&s.tag)

	s.k1.Decrypt(s.opened[:], tag[:])
	var nonce [gmacNonceSize]byte
	copy(nonce[:IVSize], s.opened[:IVSize])
	s.mac.init(&nonce)
	s.phase = phaseDecryptInit
}

// DecryptSetAAD authenticates associated data. It must be the same AAD
// given to EncryptSetAAD.
func (s *AesGmacSiv) DecryptSetAAD(aad []byte) {
	s.require("DecryptSetAAD", 1<<phaseDecryptInit)
	s.mac.aad(aad)
	s.phase = phaseDecryptAAD
}

// Decrypt decrypts ciphertext into plaintext and feeds the result to the
// verification MAC. Nothing written is trustworthy until DecryptFinish
// returns nil.
func (s *AesGmacSiv) Decrypt(ciphertext, plaintext []byte) {
	s.require("Decrypt", 1<<phaseDecryptInit|1<<phaseDecryptAAD|1<<phaseDecrypting)
	if len(plaintext) < len(ciphertext) {
		panic("aesgmacsiv: plaintext buffer shorter than ciphertext")
	}
	out := plaintext[:len(ciphertext)]
	s.ctr.XORKeyStream(out, ciphertext)
	s.mac.update(out)
	s.phase = phaseDecrypting
}

// DecryptInPlace decrypts buf in place.
func (s *AesGmacSiv) DecryptInPlace(buf []byte) {
	s.require("DecryptInPlace", 1<<phaseDecryptInit|1<<phaseDecryptAAD|1<<phaseDecrypting)
	s.ctr.XORKeyStream(buf, buf)
	s.mac.update(buf)
	s.phase = phaseDecrypting
}

// DecryptFinish checks the tag. On ErrAuthenticationFailed the caller
// must throw away everything Decrypt produced.
func (s *AesGmacSiv) DecryptFinish() error {
	s.require("DecryptFinish", 1<<phaseDecryptInit|1<<phaseDecryptAAD|1<<phaseDecrypting)
	s.phase = phaseDecryptDone

	var g, folded [BlockSize]byte
	s.mac.finish(&g)
	for i := 0; i < 8; i++ {
		folded[i] = g[i] ^ g[8+i]
	}
	if subtle.ConstantTimeCompare(folded[:8], s.opened[IVSize:]) != 1 {
		return ErrAuthenticationFailed
	}
	return nil
}

// Seal runs a complete encryption of plaintext under aad and iv.
func (s *AesGmacSiv) Seal(plaintext, aad, iv []byte) ([]byte, [TagSize]byte) {
	s.Reset()
	s.EncryptInit(iv)
	s.EncryptSetAAD(aad)
	s.EncryptFirstPass(plaintext)
	s.EncryptFirstPassFinish()
	ciphertext := make([]byte, len(plaintext))
	s.EncryptSecondPass(plaintext, ciphertext)
	return ciphertext, s.EncryptSecondPassFinish()
}

// Open runs a complete decryption and returns the plaintext only if the
// tag verifies.
func (s *AesGmacSiv) Open(ciphertext, aad []byte, tag [TagSize]byte) ([]byte, error) {
	s.Reset()
	s.DecryptInit(tag)
	s.DecryptSetAAD(aad)
	plaintext := make([]byte, len(ciphertext))
	s.Decrypt(ciphertext, plaintext)
	if err := s.DecryptFinish(); err != nil {
		clear(plaintext)
		return nil, err
	}
	return plaintext, nil
}

func (s *AesGmacSiv) newCTR(tag *[TagSize]byte) cipher.Stream {
	iv := *tag
	// Keeps the low 32-bit counter word from carrying into the rest of
	// the block for any message shorter than 2^31 blocks.
	iv[12] &= 0x7f
	return cipher.NewCTR(s.k1, iv[:])
}
