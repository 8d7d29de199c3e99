package cryptography

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	return b
}

func testKeys() ([]byte, []byte) {
	return bytes.Repeat([]byte{'0'}, 32), bytes.Repeat([]byte{'1'}, 32)
}

func newTestSession(t *testing.T) *AesGmacSiv {
	t.Helper()
	k0, k1 := testKeys()
	s, err := NewAesGmacSiv(k0, k1)
	if err != nil {
		t.Fatalf("NewAesGmacSiv failed: %v", err)
	}
	return s
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// Plaintext and AAD are bytes i&0xff, the IV is the length as a
// little-endian uint64.
func TestAesGmacSivVectors(t *testing.T) {
	testCases := []struct {
		length int
		sha384 string
		tag    string
	}{
		{0, "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b", "43847e644239134deccf5538162c861e"},
		{1, "96aaeb1c9dffe5563458bfb45e03e64aaa568399cdda3e42af5ea2eb21b73635eb611e9a098e5c7f374db78bad26f12b", "45527488fddfdd7b7f15d465a9d83a6f"},
		{15, "0176e1be0a14577174f7cc13fabd64a4357aa3f22ceddbce6372b5b01853c5a3e1db62416181a5c8b03344d21f256812", "bb83708538947a3d1a6b05f36c219c7c"},
		{16, "a69acccdf94c81925ec2f182dfd2d23c96baa0bf73e133c2a90831635e27324957cd4038326f4651e6e0c780d8b35a43", "7056247deea0963414f7d34059a91527"},
		{17, "a091dec58a2a31dfe0a92278792280a2ca47872f14945796e0ee6d4f4b01e1ebdc5111d7bf856624f3fffe8da4ea55e8", "cd3720767d1019607d7e9f719a8e7c85"},
		{64, "ecbf13e6034250a65ee1f44c85de761ca8e3bc0b057f25bb9950a6d3c2bf87f5b159b66bea8c8ef4dfbc833e8949d93b", "4850a204048bd2942aabcf10830422f0"},
		{777, "aabf892f18a620b9c3bae91bb03a74c84193e4a7b64916c6bc88b885b9ebed4134495e5f22f12e3046fbb3f26fa111a7", "b8c318b5dcc1d672114a6f7be54ef289"},
		{1500, "69e9f65ddbeb6c6d78148c6e3a5979db000e211cf61c8bbfddb27049688f13577c16c7fd3e0f6f40e9e4fd5d9d408a67", "3dc6d05e9f10fdec8985fcdbb1be5e17"},
	}

	s := newTestSession(t)
	for _, tc := range testCases {
		input := make([]byte, tc.length)
		for i := range input {
			input[i] = byte(i)
		}
		iv := make([]byte, 8)
		binary.LittleEndian.PutUint64(iv, uint64(tc.length))

		ct, tag := s.Seal(input, input, iv)
		sum := sha512.Sum384(ct)
		if got := hex.EncodeToString(sum[:]); got != tc.sha384 {
			t.Errorf("len %d: SHA-384(ciphertext) = %s, want %s", tc.length, got, tc.sha384)
		}
		if got := hex.EncodeToString(tag[:]); got != tc.tag {
			t.Errorf("len %d: tag = %s, want %s", tc.length, got, tc.tag)
		}

		pt, err := s.Open(ct, input, tag)
		if err != nil {
			t.Fatalf("len %d: Open failed: %v", tc.length, err)
		}
		if !bytes.Equal(pt, input) {
			t.Errorf("len %d: round trip mismatch", tc.length)
		}
	}
}

func TestAesGmacSivShortMessage(t *testing.T) {
	s := newTestSession(t)
	ct, tag := s.Seal([]byte("hello"), nil, make([]byte, 8))

	if want := mustHex(t, "c6c6a42aee"); !bytes.Equal(ct, want) {
		t.Errorf("ciphertext = %x, want %x", ct, want)
	}
	if want := mustHex(t, "94e02b749225fabd6712be7bda1276af"); !bytes.Equal(tag[:], want) {
		t.Errorf("tag = %x, want %x", tag, want)
	}
}

func TestAesGmacSivStreamingMatchesOneShot(t *testing.T) {
	s := newTestSession(t)
	aad := []byte("abc")
	pt := bytes.Repeat([]byte{'x'}, 40)
	iv := []byte{5, 0, 0, 0, 0, 0, 0, 0}

	wantCT := mustHex(t, "306172987534b5b2284a41e08f699d0a16a2670bb5865b41f01019d178985fe83de3c4333077a26e")
	wantTag := mustHex(t, "f13d63ed01154866418d3a69939a6d78")

	chunkings := [][]int{
		{40},
		{1, 39},
		{15, 1, 24},
		{16, 16, 8},
		{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 1},
	}
	for _, chunks := range chunkings {
		s.Reset()
		s.EncryptInit(iv)
		s.EncryptSetAAD(aad)
		off := 0
		for _, n := range chunks {
			s.EncryptFirstPass(pt[off : off+n])
			off += n
		}
		s.EncryptFirstPassFinish()

		ct := make([]byte, len(pt))
		off = 0
		for _, n := range chunks {
			s.EncryptSecondPass(pt[off:off+n], ct[off:off+n])
			off += n
		}
		tag := s.EncryptSecondPassFinish()

		if !bytes.Equal(ct, wantCT) {
			t.Errorf("chunks %v: ciphertext = %x", chunks, ct)
		}
		if !bytes.Equal(tag[:], wantTag) {
			t.Errorf("chunks %v: tag = %x", chunks, tag)
		}

		s.Reset()
		s.DecryptInit(tag)
		s.DecryptSetAAD(aad)
		buf := append([]byte(nil), ct...)
		off = 0
		for _, n := range chunks {
			s.DecryptInPlace(buf[off : off+n])
			off += n
		}
		if err := s.DecryptFinish(); err != nil {
			t.Fatalf("chunks %v: DecryptFinish failed: %v", chunks, err)
		}
		if !bytes.Equal(buf, pt) {
			t.Errorf("chunks %v: decrypted %x", chunks, buf)
		}
	}
}

func TestAesGmacSivRoundTrip(t *testing.T) {
	s := newTestSession(t)
	testCases := []struct {
		name string
		pt   []byte
		aad  []byte
		iv   []byte
	}{
		{"Empty", nil, nil, randomBytes(8)},
		{"EmptyPlaintext", nil, randomBytes(11), randomBytes(8)},
		{"EmptyAAD", randomBytes(100), nil, randomBytes(8)},
		{"Both", randomBytes(1400), randomBytes(11), randomBytes(8)},
		{"ShortIV", randomBytes(33), randomBytes(5), randomBytes(3)},
		{"LongIV", randomBytes(33), randomBytes(5), randomBytes(24)},
		{"MaxPayload", randomBytes(10005), randomBytes(11), randomBytes(8)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ct, tag := s.Seal(tc.pt, tc.aad, tc.iv)
			if len(ct) != len(tc.pt) {
				t.Fatalf("ciphertext length %d, want %d", len(ct), len(tc.pt))
			}
			pt, err := s.Open(ct, tc.aad, tag)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !bytes.Equal(pt, tc.pt) {
				t.Error("decrypted plaintext differs")
			}
		})
	}
}

func TestAesGmacSivTamper(t *testing.T) {
	s := newTestSession(t)
	pt := randomBytes(300)
	aad := randomBytes(11)
	ct, tag := s.Seal(pt, aad, randomBytes(8))

	t.Run("Ciphertext", func(t *testing.T) {
		for _, i := range []int{0, 15, 16, 150, 299} {
			bad := append([]byte(nil), ct...)
			bad[i] ^= 0x01
			if _, err := s.Open(bad, aad, tag); !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("flip at %d: got %v, want ErrAuthenticationFailed", i, err)
			}
		}
	})

	t.Run("Tag", func(t *testing.T) {
		for i := 0; i < TagSize; i++ {
			bad := tag
			bad[i] ^= 0x80
			if _, err := s.Open(ct, aad, bad); !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("flip at tag byte %d: got %v", i, err)
			}
		}
	})

	t.Run("AAD", func(t *testing.T) {
		bad := append([]byte(nil), aad...)
		bad[len(bad)-1] ^= 0x08
		if _, err := s.Open(ct, bad, tag); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("got %v, want ErrAuthenticationFailed", err)
		}
		if _, err := s.Open(ct, nil, tag); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("missing AAD: got %v, want ErrAuthenticationFailed", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		if _, err := s.Open(ct[:len(ct)-1], aad, tag); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("got %v, want ErrAuthenticationFailed", err)
		}
	})

	t.Run("WrongKeys", func(t *testing.T) {
		k0, k1 := testKeys()
		other, err := NewAesGmacSiv(k1, k0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := other.Open(ct, aad, tag); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("got %v, want ErrAuthenticationFailed", err)
		}
	})
}

func TestAesGmacSivDeterminism(t *testing.T) {
	s := newTestSession(t)
	pt := randomBytes(200)
	aad := randomBytes(11)
	iv := randomBytes(8)

	ct1, tag1 := s.Seal(pt, aad, iv)
	ct2, tag2 := s.Seal(pt, aad, iv)
	if !bytes.Equal(ct1, ct2) || tag1 != tag2 {
		t.Error("same inputs produced different output")
	}

	iv[0] ^= 1
	ct3, tag3 := s.Seal(pt, aad, iv)
	if bytes.Equal(ct1, ct3) || tag1 == tag3 {
		t.Error("different IVs produced the same output")
	}
}

func TestAesGmacSivIVFolding(t *testing.T) {
	s := newTestSession(t)
	pt := []byte("fold")

	short := []byte{1, 2, 3}
	padded := []byte{1, 2, 3, 0, 0, 0, 0, 0}
	_, a := s.Seal(pt, nil, short)
	_, b := s.Seal(pt, nil, padded)
	if a != b {
		t.Error("short IV is not zero padded")
	}

	long := []byte{1, 2, 3, 4, 5, 6, 7, 8, 1, 2, 3, 4, 5, 6, 7, 9}
	folded := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, c := s.Seal(pt, nil, long)
	_, d := s.Seal(pt, nil, folded)
	if c != d {
		t.Error("long IV is not XOR folded into 8 bytes")
	}
}

func TestAesGmacSivInPlace(t *testing.T) {
	s := newTestSession(t)
	pt := randomBytes(123)
	aad := randomBytes(11)
	iv := randomBytes(8)
	wantCT, wantTag := s.Seal(pt, aad, iv)

	buf := append([]byte(nil), pt...)
	s.Reset()
	s.EncryptInit(iv)
	s.EncryptSetAAD(aad)
	s.EncryptFirstPass(buf)
	s.EncryptFirstPassFinish()
	s.EncryptSecondPassInPlace(buf)
	tag := s.EncryptSecondPassFinish()
	if !bytes.Equal(buf, wantCT) || tag != wantTag {
		t.Fatal("in-place encryption differs from Seal")
	}

	s.Reset()
	s.DecryptInit(tag)
	s.DecryptSetAAD(aad)
	s.DecryptInPlace(buf)
	if err := s.DecryptFinish(); err != nil {
		t.Fatalf("DecryptFinish failed: %v", err)
	}
	if !bytes.Equal(buf, pt) {
		t.Error("in-place decryption differs from plaintext")
	}
}

func TestNewAesGmacSivInvalidKeys(t *testing.T) {
	good := make([]byte, 32)
	if _, err := NewAesGmacSiv(make([]byte, 31), good); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("bad k0: got %v", err)
	}
	if _, err := NewAesGmacSiv(good, nil); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("bad k1: got %v", err)
	}
	if _, err := NewAesGmacSiv(make([]byte, 16), make([]byte, 24)); err != nil {
		t.Errorf("mixed key sizes rejected: %v", err)
	}
}

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("%s: expected panic", name)
			return
		}
		msg, ok := r.(string)
		if !ok || !strings.HasPrefix(msg, "aesgmacsiv:") {
			t.Errorf("%s: unexpected panic value %v", name, r)
		}
	}()
	f()
}

func TestAesGmacSivMisuse(t *testing.T) {
	var tag [TagSize]byte
	buf := make([]byte, 32)

	testCases := []struct {
		name string
		run  func(s *AesGmacSiv)
	}{
		{"FirstPassBeforeInit", func(s *AesGmacSiv) { s.EncryptFirstPass(buf) }},
		{"SecondPassBeforeFirstFinish", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass(buf)
			s.EncryptSecondPass(buf, buf)
		}},
		{"AADAfterFirstPass", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass(buf)
			s.EncryptSetAAD(buf)
		}},
		{"AADTwice", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptSetAAD(buf)
			s.EncryptSetAAD(buf)
		}},
		{"InitTwice", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptInit(nil)
		}},
		{"SecondPassLonger", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass(buf[:16])
			s.EncryptFirstPassFinish()
			s.EncryptSecondPassInPlace(buf)
		}},
		{"SecondPassShorter", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass(buf)
			s.EncryptFirstPassFinish()
			s.EncryptSecondPassInPlace(buf[:16])
			s.EncryptSecondPassFinish()
		}},
		{"SecondPassOutputTooShort", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPass(buf)
			s.EncryptFirstPassFinish()
			s.EncryptSecondPass(buf, buf[:4])
		}},
		{"DecryptBeforeInit", func(s *AesGmacSiv) { s.Decrypt(buf, buf) }},
		{"DecryptInitDuringEncrypt", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.DecryptInit(tag)
		}},
		{"DecryptAADAfterData", func(s *AesGmacSiv) {
			s.DecryptInit(tag)
			s.DecryptInPlace(buf)
			s.DecryptSetAAD(buf)
		}},
		{"DecryptAfterFinish", func(s *AesGmacSiv) {
			s.DecryptInit(tag)
			_ = s.DecryptFinish()
			s.DecryptInPlace(buf)
		}},
		{"EncryptFinishTwice", func(s *AesGmacSiv) {
			s.EncryptInit(nil)
			s.EncryptFirstPassFinish()
			s.EncryptSecondPassFinish()
			s.EncryptSecondPassFinish()
		}},
	}

	s := newTestSession(t)
	for _, tc := range testCases {
		s.Reset()
		expectPanic(t, tc.name, func() { tc.run(s) })
	}
}

func TestAesGmacSivResetRecovers(t *testing.T) {
	s := newTestSession(t)
	s.EncryptInit(randomBytes(8))
	s.EncryptFirstPass(randomBytes(10))
	s.Reset()

	pt := randomBytes(50)
	ct, tag := s.Seal(pt, nil, randomBytes(8))
	got, err := s.Open(ct, nil, tag)
	if err != nil || !bytes.Equal(got, pt) {
		t.Fatalf("session unusable after Reset: %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	if phaseSecond := phaseEncryptSecondPass.String(); phaseSecond != "encrypt-second-pass" {
		t.Errorf("String() = %q", phaseSecond)
	}
	if got := phase(200).String(); got != "phase(200)" {
		t.Errorf("String() = %q", got)
	}
}

func BenchmarkAesGmacSivSeal(b *testing.B) {
	k0, k1 := testKeys()
	s, _ := NewAesGmacSiv(k0, k1)
	pt := randomBytes(1400)
	aad := randomBytes(11)
	iv := randomBytes(8)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Seal(pt, aad, iv)
	}
}

func TestSelfTest(t *testing.T) {
	if err := SelfTest(); err != nil {
		t.Fatalf("SelfTest() failed: %v", err)
	}
}
