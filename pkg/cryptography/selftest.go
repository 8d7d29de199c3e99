package cryptography

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

type knownAnswer struct {
	name       string
	aad        []byte
	plaintext  []byte
	iv         []byte
	ciphertext string
	tag        string
}

var knownAnswers = []knownAnswer{
	{
		name:       "short",
		plaintext:  []byte("hello"),
		iv:         make([]byte, IVSize),
		ciphertext: "c6c6a42aee",
		tag:        "94e02b749225fabd6712be7bda1276af",
	},
	{
		name:       "aad",
		aad:        []byte("abc"),
		plaintext:  bytes.Repeat([]byte{'x'}, 40),
		iv:         []byte{5, 0, 0, 0, 0, 0, 0, 0},
		ciphertext: "306172987534b5b2284a41e08f699d0a16a2670bb5865b41f01019d178985fe83de3c4333077a26e",
		tag:        "f13d63ed01154866418d3a69939a6d78",
	},
}

// SelfTest checks the AES-GMAC-SIV implementation against known answers
// and confirms that a corrupted tag is rejected.
func SelfTest() error {
	s, err := NewAesGmacSiv(bytes.Repeat([]byte{'0'}, 32), bytes.Repeat([]byte{'1'}, 32))
	if err != nil {
		return err
	}

	for _, ka := range knownAnswers {
		ct, tag := s.Seal(ka.plaintext, ka.aad, ka.iv)
		if got := hex.EncodeToString(ct); got != ka.ciphertext {
			return fmt.Errorf("selftest %s: ciphertext %s, want %s", ka.name, got, ka.ciphertext)
		}
		if got := hex.EncodeToString(tag[:]); got != ka.tag {
			return fmt.Errorf("selftest %s: tag %s, want %s", ka.name, got, ka.tag)
		}

		pt, err := s.Open(ct, ka.aad, tag)
		if err != nil {
			return fmt.Errorf("selftest %s: %w", ka.name, err)
		}
		if !bytes.Equal(pt, ka.plaintext) {
			return fmt.Errorf("selftest %s: decrypted plaintext mismatch", ka.name)
		}

		tag[TagSize-1] ^= 1
		if _, err := s.Open(ct, ka.aad, tag); !errors.Is(err, ErrAuthenticationFailed) {
			return fmt.Errorf("selftest %s: corrupted tag accepted", ka.name)
		}
	}
	return nil
}
