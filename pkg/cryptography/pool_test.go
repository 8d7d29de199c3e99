package cryptography

import (
	"bytes"
	"errors"
	"testing"
)

func TestSessionPool(t *testing.T) {
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	p, err := NewSessionPool(keys)
	if err != nil {
		t.Fatalf("NewSessionPool failed: %v", err)
	}

	s := p.Get()
	pt := randomBytes(77)
	ct, tag := s.Seal(pt, nil, randomBytes(8))
	p.Put(s)

	for i := 0; i < 4; i++ {
		s := p.Get()
		got, err := s.Open(ct, nil, tag)
		if err != nil || !bytes.Equal(got, pt) {
			t.Fatalf("pooled session %d failed: %v", i, err)
		}
		p.Put(s)
	}
	p.Put(nil)
}

// Sessions handed back in the middle of an operation come out of the pool
// idle. EncryptInit and DecryptInit panic on anything but an idle session.
func TestSessionPoolResetsOnPut(t *testing.T) {
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	p, err := NewSessionPool(keys)
	if err != nil {
		t.Fatalf("NewSessionPool failed: %v", err)
	}

	leave := []struct {
		name string
		mid  func(s *AesGmacSiv)
	}{
		{"EncryptFirstPass", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass([]byte("abc"))
		}},
		{"EncryptSecondPass", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass([]byte("abc"))
			s.EncryptFirstPassFinish()
		}},
		{"Decrypting", func(s *AesGmacSiv) {
			s.DecryptInit([TagSize]byte{})
			s.DecryptInPlace(make([]byte, 3))
		}},
		{"DecryptDone", func(s *AesGmacSiv) {
			_, _ = s.Open([]byte("abc"), nil, [TagSize]byte{})
		}},
	}

	for _, tc := range leave {
		t.Run(tc.name, func(t *testing.T) {
			s := p.Get()
			tc.mid(s)
			p.Put(s)

			s = p.Get()
			defer p.Put(s)
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("pooled session not idle: %v", r)
				}
			}()
			s.EncryptInit([]byte{1})
			s.EncryptFirstPass([]byte("payload"))
			s.EncryptFirstPassFinish()
			buf := []byte("payload")
			s.EncryptSecondPassInPlace(buf)
			tag := s.EncryptSecondPassFinish()

			s.Reset()
			s.DecryptInit(tag)
			s.DecryptInPlace(buf)
			if err := s.DecryptFinish(); err != nil || string(buf) != "payload" {
				t.Fatalf("round trip through pooled session: %q, %v", buf, err)
			}
		})
	}
}

func TestSessionPoolInvalidKeys(t *testing.T) {
	_, err := NewSessionPool(KeyPair{K0: make([]byte, 32), K1: make([]byte, 5)})
	if !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("got %v, want ErrInvalidKeySize", err)
	}
}
