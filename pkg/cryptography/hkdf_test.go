package cryptography

import (
	"bytes"
	"errors"
	"testing"
)

// Known answers for HKDF-SHA-384. The first case uses the inputs of
// RFC 5869 test case 1.
func TestDeriveKeySHA384Vectors(t *testing.T) {
	testCases := []struct {
		name   string
		secret []byte
		salt   []byte
		info   []byte
		length int
		want   string
	}{
		{
			name:   "RFC5869Case1Inputs",
			secret: bytes.Repeat([]byte{0x0b}, 22),
			salt:   []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c},
			info:   []byte{0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8, 0xf9},
			length: 42,
			want:   "9b5097a86038b805309076a44b3a9f38063e25b516dcbf369f394cfab43685f748b6457763e4f0204fc5",
		},
		{
			name:   "NoSaltNoInfo",
			secret: bytes.Repeat([]byte{0x0b}, 22),
			length: 32,
			want:   "c8c96e710f89b0d7990bca68bcdec8cf854062e54c73a7abc743fade9b242daa",
		},
		{
			name:   "SeveralBlocks",
			secret: []byte("test-secret"),
			salt:   []byte("test-salt"),
			info:   []byte("test-info"),
			length: 100,
			want: "2f23342dd9c5491b4c0ab4a60de68575f5a66516e7fb44950fb1ddc357d2af61" +
				"314326856d5d1caf145438e638502f2a1236e4ab7ee04667aeb598ec5ef075fd" +
				"17e0ffe6884a9db292e6173521bfe67165f2f9fb424b800f854437a3f84f0af2" +
				"a43d0bc9",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveKey(tc.secret, tc.salt, tc.info, tc.length)
			if err != nil {
				t.Fatalf("DeriveKey failed: %v", err)
			}
			if want := mustHex(t, tc.want); !bytes.Equal(got, want) {
				t.Errorf("DeriveKey = %x\nwant        %x", got, want)
			}
		})
	}
}

func TestDeriveKeyInputsMatter(t *testing.T) {
	base, err := DeriveKey([]byte("secret"), []byte("salt"), []byte("info"), 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	variants := map[string][3]string{
		"Secret": {"secret2", "salt", "info"},
		"Salt":   {"secret", "salt2", "info"},
		"Info":   {"secret", "salt", "info2"},
	}
	for name, v := range variants {
		key, err := DeriveKey([]byte(v[0]), []byte(v[1]), []byte(v[2]), 32)
		if err != nil {
			t.Fatalf("%s: DeriveKey failed: %v", name, err)
		}
		if bytes.Equal(key, base) {
			t.Errorf("changing the %s did not change the key", name)
		}
	}

	// Shorter outputs are prefixes of longer ones.
	long, err := DeriveKey([]byte("secret"), []byte("salt"), []byte("info"), 64)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(long[:32], base) {
		t.Error("32-byte output is not a prefix of the 64-byte output")
	}

	if key, err := DeriveKey([]byte("secret"), nil, nil, 0); err != nil || len(key) != 0 {
		t.Errorf("zero length: %x, %v", key, err)
	}
	// HKDF-SHA-384 stops at 255 hash blocks.
	if _, err := DeriveKey([]byte("secret"), nil, nil, 255*48+1); err == nil {
		t.Error("DeriveKey accepted an output longer than 255 blocks")
	}
}

func TestDeriveKeyPairVector(t *testing.T) {
	kp, err := DeriveKeyPair([]byte("vl1 shared secret"), []byte("vl1 salt"), []byte("vl1 key pair"))
	if err != nil {
		t.Fatalf("DeriveKeyPair failed: %v", err)
	}
	if want := mustHex(t, "35268c79afb9495e98da7e42435887ea4a16e52ffd4aa7fb621b9517f263198e"); !bytes.Equal(kp.K0, want) {
		t.Errorf("K0 = %x, want %x", kp.K0, want)
	}
	if want := mustHex(t, "ac6671da118ceeb2a67e65dc210d0c0ed1fd999771f5f75fdb94983c7e4539cd"); !bytes.Equal(kp.K1, want) {
		t.Errorf("K1 = %x, want %x", kp.K1, want)
	}
}

func TestDeriveKeyPair(t *testing.T) {
	secret := []byte("shared-secret")

	kp, err := DeriveKeyPair(secret, nil, []byte("vl1"))
	if err != nil {
		t.Fatalf("DeriveKeyPair failed: %v", err)
	}
	if err := kp.Validate(); err != nil {
		t.Fatalf("derived pair invalid: %v", err)
	}
	if len(kp.K0) != DefaultKeySize || len(kp.K1) != DefaultKeySize {
		t.Fatalf("key sizes %d/%d", len(kp.K0), len(kp.K1))
	}
	if bytes.Equal(kp.K0, kp.K1) {
		t.Error("K0 and K1 are identical")
	}

	okm, err := DeriveKey(secret, nil, []byte("vl1"), 2*DefaultKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(okm[:32], kp.K0) || !bytes.Equal(okm[32:], kp.K1) {
		t.Error("key pair is not the split HKDF output")
	}

	other, err := DeriveKeyPair(secret, nil, []byte("vl1-other"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(other.K0, kp.K0) {
		t.Error("different info produced the same K0")
	}
}

func TestKeyPairValidate(t *testing.T) {
	testCases := []struct {
		name string
		kp   KeyPair
		ok   bool
	}{
		{"AES256", KeyPair{K0: make([]byte, 32), K1: make([]byte, 32)}, true},
		{"AES128", KeyPair{K0: make([]byte, 16), K1: make([]byte, 16)}, true},
		{"MissingK0", KeyPair{K1: make([]byte, 32)}, false},
		{"ShortK1", KeyPair{K0: make([]byte, 32), K1: make([]byte, 31)}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.kp.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("Validate() = %v, want ErrInvalidKeySize", err)
			}
		})
	}
}
