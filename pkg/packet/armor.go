package packet

import (
	"fmt"

	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
)

// Armor encrypts payload under h and returns the complete packet. The
// header's ID is used as the IV and is then replaced, together with the
// MAC field, by the AEAD tag. The cipher suite and the fragmented flag are
// set here, before encryption, because both are authenticated. mtu <= 0
// means DefaultMTU.
func Armor(s *cryptography.AesGmacSiv, h *Header, payload []byte, mtu int) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	if h.Src.IsReserved() {
		return nil, fmt.Errorf("source %s: %w", h.Src, ErrReservedAddress)
	}
	if mtu <= 0 {
		mtu = DefaultMTU
	}

	h.Flags &^= FlagReserved
	h.SetCipherSuite(CipherAESGMACSIV)
	h.SetFragmented(HeaderSize+len(payload) > mtu)
	aad := h.AAD()

	raw := make([]byte, HeaderSize+len(payload))
	s.Reset()
	s.EncryptInit(h.ID[:])
	s.EncryptSetAAD(aad[:])
	s.EncryptFirstPass(payload)
	s.EncryptFirstPassFinish()
	s.EncryptSecondPass(payload, raw[HeaderSize:])
	h.SetTag(s.EncryptSecondPassFinish())

	if err := h.Pack(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Dearmor authenticates and decrypts a complete (reassembled) packet.
func Dearmor(s *cryptography.AesGmacSiv, raw []byte) (Header, []byte, error) {
	var h Header
	if IsFragment(raw) {
		return h, nil, ErrUnexpectedFragment
	}
	if err := h.Unpack(raw); err != nil {
		return h, nil, err
	}
	if len(raw)-HeaderSize > MaxPayload {
		return h, nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(raw)-HeaderSize, MaxPayload)
	}
	if suite := h.CipherSuite(); suite != CipherAESGMACSIV {
		return h, nil, fmt.Errorf("%w: %s", ErrUnsupportedCipherSuite, CipherSuiteName(suite))
	}

	aad := h.AAD()
	payload := make([]byte, len(raw)-HeaderSize)
	s.Reset()
	s.DecryptInit(h.Tag())
	s.DecryptSetAAD(aad[:])
	s.Decrypt(raw[HeaderSize:], payload)
	if err := s.DecryptFinish(); err != nil {
		clear(payload)
		return h, nil, err
	}
	return h, payload, nil
}
